// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/pdiddy/scholarly/pkg/types"
)

// Browser owns one headless Chrome process, shared across sequential
// page fetches. It is handed to the Scholar adapter at construction;
// the owner calls Close when done. The underlying browser is not safe
// for concurrent use, so Fetch serializes callers and spaces requests
// with a rate limiter.
type Browser struct {
	cfg types.BrowserConfig

	mu       sync.Mutex
	limiter  *rate.Limiter
	allocCtx context.Context
	cancels  []context.CancelFunc
	started  bool
}

// NewBrowser returns an unstarted browser resource. The Chrome process
// is launched lazily on the first Fetch.
func NewBrowser(cfg types.BrowserConfig) *Browser {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinRequestGap > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinRequestGap), 1)
	}
	return &Browser{cfg: cfg, limiter: limiter}
}

// start launches the Chrome process. Caller holds b.mu.
func (b *Browser) start() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Navigate once so the process actually starts; a dead binary
	// surfaces here instead of mid-search.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("launching browser: %w: %v", ErrUnavailable, err)
	}

	b.allocCtx = browserCtx
	b.cancels = []context.CancelFunc{cancelBrowser, cancelAlloc}
	b.started = true
	return nil
}

// Fetch navigates to url and returns the rendered page HTML. Calls are
// serialized; a second caller waits for the first to finish.
func (b *Browser) Fetch(ctx context.Context, url string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		if err := b.start(); err != nil {
			return "", err
		}
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	if b.cfg.PageTimeout > 0 {
		var cancelTimeout context.CancelFunc
		tabCtx, cancelTimeout = context.WithTimeout(tabCtx, b.cfg.PageTimeout)
		defer cancelTimeout()
	}

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w: %v", url, ErrUnavailable, err)
	}
	return html, nil
}

// Close releases the Chrome process. Safe to call without a prior
// Fetch and safe to call twice.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
	b.started = false
	return nil
}

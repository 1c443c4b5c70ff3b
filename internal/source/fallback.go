// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scholarly/pkg/types"
)

// ScholarFallback is the Google Scholar entry point: it prefers the
// managed scraping service when configured to, and retries once with
// the browser variant when the service fails. One fallback step only;
// if both variants fail, the source is failed for this call.
type ScholarFallback struct {
	Managed Adapter
	Browser Adapter

	// PreferManaged selects the managed service first. Evaluated per
	// call so a preferences change takes effect without rebuilding the
	// adapter.
	PreferManaged func() bool

	Log zerolog.Logger
}

// Name returns the source identifier.
func (a *ScholarFallback) Name() types.Source { return types.SourceGoogleScholar }

// Search tries the preferred variant, then the other one on failure.
func (a *ScholarFallback) Search(ctx context.Context, req types.SearchRequest, cfg types.SearchConfig) ([]types.UnifiedPaper, error) {
	first, second := a.Browser, a.Managed
	if a.PreferManaged != nil && a.PreferManaged() && cfg.FirecrawlAPIKey != "" {
		first, second = a.Managed, a.Browser
	}

	papers, err := first.Search(ctx, req, cfg)
	if err == nil {
		return papers, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	a.Log.Warn().
		Err(err).
		Str("variant", variantName(first)).
		Msg("scholar variant failed, falling back")

	return second.Search(ctx, req, cfg)
}

// GetByID delegates to the managed variant first, mirroring Search.
func (a *ScholarFallback) GetByID(ctx context.Context, id string, cfg types.SearchConfig) (*types.UnifiedPaper, error) {
	p, err := a.Managed.GetByID(ctx, id, cfg)
	if err == nil {
		return p, nil
	}
	return a.Browser.GetByID(ctx, id, cfg)
}

func variantName(a Adapter) string {
	switch a.(type) {
	case *FirecrawlAdapter:
		return "firecrawl"
	case *ScholarAdapter:
		return "browser"
	}
	return "unknown"
}

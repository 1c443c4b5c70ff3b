// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/scholarly/internal/httputil"
	"github.com/pdiddy/scholarly/pkg/types"
)

// firecrawlAPIBase is the Firecrawl search endpoint. Declared as a var
// so tests can substitute an httptest server.
var firecrawlAPIBase = "https://api.firecrawl.dev/v1/search"

// ConfidenceFirecrawl reflects scraped-then-cleaned metadata from a
// managed service.
const ConfidenceFirecrawl = 0.7

// reCitedBy extracts a citation count from scraped snippet text.
var reCitedBy = regexp.MustCompile(`Cited by (\d+)`)

// reYear finds a plausible publication year in scraped metadata.
var reYear = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// FirecrawlAdapter queries Google Scholar through the Firecrawl managed
// scraping service. It is the preferred Scholar variant when a key is
// configured; the browser variant is the fallback.
type FirecrawlAdapter struct {
	Client *http.Client
}

// Name returns the source identifier. Firecrawl is a scraping method
// for Google Scholar, not a source of its own.
func (a *FirecrawlAdapter) Name() types.Source { return types.SourceGoogleScholar }

// Search posts the query to the Firecrawl search API, restricted to
// Google Scholar, and normalizes the returned web results.
func (a *FirecrawlAdapter) Search(ctx context.Context, req types.SearchRequest, cfg types.SearchConfig) ([]types.UnifiedPaper, error) {
	if cfg.FirecrawlAPIKey == "" {
		return nil, fmt.Errorf("firecrawl API key not configured: %w", ErrUnavailable)
	}

	payload := firecrawlRequest{
		Query: req.Query + " site:scholar.google.com",
		Limit: capResults(cfg.MaxResults),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, firecrawlAPIBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.FirecrawlAPIKey)
	httpReq.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, a.Client, httpReq, 0)
	if err != nil {
		return nil, fmt.Errorf("firecrawl request: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("firecrawl returned HTTP %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var fr firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("parsing firecrawl response: %w: %v", ErrParse, err)
	}
	if !fr.Success {
		return nil, fmt.Errorf("firecrawl reported failure: %w", ErrUnavailable)
	}

	var papers []types.UnifiedPaper
	for _, item := range fr.Data {
		if p, ok := normalizeFirecrawlResult(item, req); ok {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// GetByID is not supported by the search-only Firecrawl surface.
func (a *FirecrawlAdapter) GetByID(ctx context.Context, id string, cfg types.SearchConfig) (*types.UnifiedPaper, error) {
	return nil, fmt.Errorf("firecrawl lookup for %q: %w", id, ErrNotFound)
}

// normalizeFirecrawlResult maps one scraped web result. Results with
// no title or outside the request date range are dropped.
func normalizeFirecrawlResult(item firecrawlResult, req types.SearchRequest) (types.UnifiedPaper, bool) {
	title := stripScholarPrefix(collapseWhitespace(item.Title))
	if title == "" {
		return types.UnifiedPaper{}, false
	}

	p := types.UnifiedPaper{
		Title:      title,
		Abstract:   collapseWhitespace(item.Description),
		URL:        item.URL,
		Source:     types.SourceGoogleScholar,
		Confidence: ConfidenceFirecrawl,
	}

	if m := reCitedBy.FindStringSubmatch(item.Description); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
			p.Citations = &n
		}
	}
	if m := reYear.FindString(item.Description); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			p.Year = y
		}
	}

	if !inDateRange(p.Year, req.StartDate, req.EndDate) {
		return types.UnifiedPaper{}, false
	}
	return p, true
}

// Firecrawl API JSON structures.
type firecrawlRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type firecrawlResponse struct {
	Success bool              `json:"success"`
	Data    []firecrawlResult `json:"data"`
}

type firecrawlResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// scholarTitlePrefixes lists decorations Scholar puts ahead of titles
// in scraped text.
var scholarTitlePrefixes = []string{"[PDF]", "[HTML]", "[BOOK]", "[CITATION]"}

// stripScholarPrefix removes result-type markers from a scraped title.
func stripScholarPrefix(title string) string {
	for _, prefix := range scholarTitlePrefixes {
		title = strings.TrimSpace(strings.TrimPrefix(title, prefix))
	}
	return title
}

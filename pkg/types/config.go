// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by adapters that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "scholarly/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings passed to every adapter search call.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the per-source result cap for this call.
	MaxResults int `json:"max_results" yaml:"max_results"`

	// NCBIAPIKey raises the PubMed rate limit when set.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// FirecrawlAPIKey authenticates the managed scraping service.
	FirecrawlAPIKey string `json:"firecrawl_api_key,omitempty" yaml:"firecrawl_api_key,omitempty"`
}

// BrowserConfig holds settings for the headless-browser scraping
// variant.
type BrowserConfig struct {
	// Headless runs the browser without a window. Disabled only for
	// local debugging.
	Headless bool `json:"headless" yaml:"headless"`

	// UserAgent overrides the browser's User-Agent string.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// PageTimeout bounds a single page navigation.
	PageTimeout time.Duration `json:"page_timeout" yaml:"page_timeout"`

	// MinRequestGap is the minimum spacing between page fetches.
	// Scholar blocks aggressive scraping.
	MinRequestGap time.Duration `json:"min_request_gap" yaml:"min_request_gap"`
}

// DedupConfig holds the deduplication heuristic's tunables. The
// defaults are a deliberately approximate policy, not a correctness
// guarantee: distinct papers can merge and duplicates can slip through.
type DedupConfig struct {
	// TitleSimilarity is the token-overlap ratio at or above which two
	// non-identical normalized titles are considered the same work,
	// provided the author lists also overlap.
	TitleSimilarity float64 `json:"title_similarity" yaml:"title_similarity"`

	// RequireAuthorOverlap demands at least one shared surname before
	// merging on similar (non-identical) titles.
	RequireAuthorOverlap bool `json:"require_author_overlap" yaml:"require_author_overlap"`
}

// DefaultDedupConfig returns the standard heuristic thresholds.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		TitleSimilarity:      0.85,
		RequireAuthorOverlap: true,
	}
}

// AggregateConfig holds settings for the aggregation stage itself.
type AggregateConfig struct {
	// SourceTimeout is the fixed ceiling for one source's search call;
	// past it the source counts as failed for this search. Other
	// in-flight sources are unaffected.
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout"`
}

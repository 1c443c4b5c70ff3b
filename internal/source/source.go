// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source implements the per-database adapters: PubMed, arXiv,
// and Google Scholar (headless browser and managed scraping service).
// Each adapter maps one external API's response shape onto the common
// UnifiedPaper record; callers depend only on the Adapter interface,
// never on which variant answered.
package source

import (
	"context"
	"errors"

	"github.com/pdiddy/scholarly/pkg/types"
)

// Sentinel errors for the adapter error taxonomy. Adapters wrap these
// so the aggregator can classify a failure without knowing the source.
var (
	// ErrUnavailable marks a network or service failure.
	ErrUnavailable = errors.New("source unavailable")

	// ErrParse marks a response that could not be mapped to the
	// expected shape.
	ErrParse = errors.New("response parse failure")

	// ErrNotFound marks a GetByID miss.
	ErrNotFound = errors.New("paper not found")
)

// Adapter searches a single paper database. Implementations translate
// the query into the source's request format and normalize the raw
// response into UnifiedPaper records, dropping any record without a
// title.
type Adapter interface {
	Name() types.Source

	// Search returns papers matching the request, already normalized.
	// Fails wrapping ErrUnavailable or ErrParse.
	Search(ctx context.Context, req types.SearchRequest, cfg types.SearchConfig) ([]types.UnifiedPaper, error)

	// GetByID fetches one paper by its source-native identifier.
	// Fails wrapping ErrNotFound when the source has no such record.
	GetByID(ctx context.Context, id string, cfg types.SearchConfig) (*types.UnifiedPaper, error)
}

// capResults applies the per-call result cap with the adapter default.
func capResults(requested int) int {
	if requested <= 0 {
		return 20
	}
	return requested
}

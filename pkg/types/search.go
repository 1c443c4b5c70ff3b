// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"time"
)

// SortKey selects the final result ordering.
type SortKey string

const (
	SortRelevance SortKey = "relevance"
	SortDate      SortKey = "date"
	SortCitations SortKey = "citations"
)

// Valid reports whether k names a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortRelevance, SortDate, SortCitations:
		return true
	}
	return false
}

// SearchRequest holds the caller-supplied search parameters.
type SearchRequest struct {
	// Query is the free-text query. Required, non-empty.
	Query string `json:"query" yaml:"query"`

	// MaxResults caps the final result list. 0 means use the
	// preferences default.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`

	// StartDate and EndDate bound the publication date range when set.
	StartDate time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`

	// Sources overrides the enabled-source list from preferences.
	// Empty means use preferences.
	Sources []Source `json:"sources,omitempty" yaml:"sources,omitempty"`

	// SortBy selects the ordering. Empty means the preferences default.
	SortBy SortKey `json:"sort_by,omitempty" yaml:"sort_by,omitempty"`

	// NoDedup disables cross-source deduplication for this call.
	NoDedup bool `json:"no_dedup,omitempty" yaml:"no_dedup,omitempty"`

	// NoCache bypasses the result cache for this call.
	NoCache bool `json:"no_cache,omitempty" yaml:"no_cache,omitempty"`
}

// SourceDiagnostics records one source's contribution to a search.
type SourceDiagnostics struct {
	// Count is the number of papers the source returned.
	Count int `json:"count" yaml:"count"`

	// Error is the failure message when the source errored. Empty on
	// success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// ElapsedMS is the wall time the source call took.
	ElapsedMS int64 `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// DedupStats records the effect of deduplication on one search.
type DedupStats struct {
	Before            int `json:"before" yaml:"before"`
	After             int `json:"after" yaml:"after"`
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`
}

// SearchResult is the aggregator's output: the ordered paper list plus
// per-source diagnostics. A search never fails because one source
// failed; the caller inspects PerSource to distinguish "no matches"
// from "sources unavailable".
type SearchResult struct {
	Papers []UnifiedPaper `json:"papers" yaml:"papers"`

	// SourcesUsed lists the sources that responded successfully, in
	// priority order. Failed sources appear only in PerSource.
	SourcesUsed []Source `json:"sources_used" yaml:"sources_used"`

	// PerSource holds diagnostics keyed by source.
	PerSource map[Source]SourceDiagnostics `json:"per_source" yaml:"per_source"`

	// Dedup holds the deduplication statistics.
	Dedup DedupStats `json:"dedup" yaml:"dedup"`

	// Cached is true when the response was served from the result cache.
	Cached bool `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// Errors returns the per-source failure messages, one per failed
// source, in source-name order.
func (r SearchResult) Errors() []string {
	names := make([]Source, 0, len(r.PerSource))
	for s := range r.PerSource {
		names = append(names, s)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	var msgs []string
	for _, s := range names {
		if d := r.PerSource[s]; d.Error != "" {
			msgs = append(msgs, string(s)+": "+d.Error)
		}
	}
	return msgs
}

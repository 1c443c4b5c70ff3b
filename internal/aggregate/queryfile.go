// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scholarly/pkg/types"
)

// QueryFile is the on-disk representation of a search and its
// results. A search can be saved to a file and reloaded later without
// re-querying the sources.
type QueryFile struct {
	Query   QueryParams          `yaml:"query"`
	Results []types.UnifiedPaper `yaml:"results"`
	Summary QuerySummary         `yaml:"summary"`
}

// QueryParams stores the request parameters in a serializable form.
type QueryParams struct {
	FreeText   string   `yaml:"free_text"`
	MaxResults int      `yaml:"max_results,omitempty"`
	DateFrom   string   `yaml:"date_from,omitempty"`
	DateTo     string   `yaml:"date_to,omitempty"`
	Sources    []string `yaml:"sources,omitempty"`
	SortBy     string   `yaml:"sort_by,omitempty"`
	NoDedup    bool     `yaml:"no_dedup,omitempty"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total             int       `yaml:"total"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	SourceErrors      []string  `yaml:"source_errors,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

const dateFmt = "2006-01-02"

// WriteQueryFile saves the request and its results to a YAML file.
func WriteQueryFile(path string, req types.SearchRequest, res *types.SearchResult) error {
	qf := QueryFile{
		Query: QueryParams{
			FreeText:   req.Query,
			MaxResults: req.MaxResults,
			SortBy:     string(req.SortBy),
			NoDedup:    req.NoDedup,
		},
		Results: res.Papers,
		Summary: QuerySummary{
			Total:             len(res.Papers),
			DuplicatesRemoved: res.Dedup.DuplicatesRemoved,
			SourceErrors:      res.Errors(),
			Timestamp:         time.Now(),
		},
	}
	for _, s := range req.Sources {
		qf.Query.Sources = append(qf.Query.Sources, string(s))
	}
	if !req.StartDate.IsZero() {
		qf.Query.DateFrom = req.StartDate.Format(dateFmt)
	}
	if !req.EndDate.IsZero() {
		qf.Query.DateTo = req.EndDate.Format(dateFmt)
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// ToRequest converts stored QueryParams back into a SearchRequest.
func (p QueryParams) ToRequest() (types.SearchRequest, error) {
	req := types.SearchRequest{
		Query:      p.FreeText,
		MaxResults: p.MaxResults,
		SortBy:     types.SortKey(p.SortBy),
		NoDedup:    p.NoDedup,
	}
	for _, s := range p.Sources {
		req.Sources = append(req.Sources, types.Source(s))
	}
	if p.DateFrom != "" {
		t, err := time.Parse(dateFmt, p.DateFrom)
		if err != nil {
			return req, fmt.Errorf("invalid date_from %q: %w", p.DateFrom, err)
		}
		req.StartDate = t
	}
	if p.DateTo != "" {
		t, err := time.Parse(dateFmt, p.DateTo)
		if err != nil {
			return req, fmt.Errorf("invalid date_to %q: %w", p.DateTo, err)
		}
		req.EndDate = t
	}
	return req, nil
}

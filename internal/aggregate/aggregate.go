// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate fans a search out over the registered source
// adapters, merges the normalized results, deduplicates and ranks
// them. One failing source never fails the search: its error is
// recorded in the per-source diagnostics and the remaining results are
// returned.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scholarly/internal/cache"
	"github.com/pdiddy/scholarly/internal/metrics"
	"github.com/pdiddy/scholarly/internal/source"
	"github.com/pdiddy/scholarly/pkg/types"
)

// ValidationError reports a request rejected before any source was
// contacted.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Msg)
}

// Aggregator coordinates the source adapters.
type Aggregator struct {
	adapters map[types.Source]source.Adapter
	prefs    PrefStore
	cfg      types.AggregateConfig
	dedup    types.DedupConfig
	search   types.SearchConfig
	cache    *cache.Store
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// PrefStore is the slice of the preferences store the aggregator
// needs.
type PrefStore interface {
	Get() types.Preferences
}

// Options carries the optional collaborators for New. Cache and
// Metrics may be nil.
type Options struct {
	Cache   *cache.Store
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// New builds an aggregator over the given adapters.
func New(adapters map[types.Source]source.Adapter, prefs PrefStore, cfg types.AggregateConfig, dedup types.DedupConfig, search types.SearchConfig, opts Options) *Aggregator {
	return &Aggregator{
		adapters: adapters,
		prefs:    prefs,
		cfg:      cfg,
		dedup:    dedup,
		search:   search,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		log:      opts.Log,
	}
}

// sourceJob is one adapter invocation scheduled by Search.
type sourceJob struct {
	name     types.Source
	adapter  source.Adapter
	priority int
	max      int
}

// Search runs the query against every enabled source concurrently and
// returns the merged, deduplicated, ranked result set.
func (a *Aggregator) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error) {
	p := a.prefs.Get()
	applyDefaults(&req, p)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	jobs, err := a.resolveSources(req, p)
	if err != nil {
		return nil, err
	}

	if a.cache != nil && !req.NoCache && p.Cache.Enabled {
		if res, ok := a.cache.Get(req); ok {
			a.log.Debug().Str("query", req.Query).Msg("cache hit")
			a.metrics.ObserveCacheHit()
			return &res, nil
		}
	}

	res := a.fanOut(ctx, req, jobs)

	if !req.NoDedup && p.Search.Dedup {
		before := len(res.Papers)
		res.Papers = Deduplicate(res.Papers, a.dedup)
		res.Dedup = types.DedupStats{
			Before:            before,
			After:             len(res.Papers),
			DuplicatesRemoved: before - len(res.Papers),
		}
		a.metrics.ObserveDedup(res.Dedup.DuplicatesRemoved)
	} else {
		res.Dedup = types.DedupStats{Before: len(res.Papers), After: len(res.Papers)}
	}

	Rank(res.Papers, req.SortBy)
	if req.MaxResults > 0 && len(res.Papers) > req.MaxResults {
		res.Papers = res.Papers[:req.MaxResults]
	}

	if a.cache != nil && !req.NoCache && p.Cache.Enabled {
		if err := a.cache.Put(req, *res); err != nil {
			a.log.Warn().Err(err).Msg("caching search result")
		}
	}
	return res, nil
}

// fanOut runs every job in its own goroutine with a per-source
// timeout and joins the results. Slots are indexed by job, and jobs
// are ordered by priority before launch, so the concatenation order
// is deterministic regardless of which source finishes first.
func (a *Aggregator) fanOut(ctx context.Context, req types.SearchRequest, jobs []sourceJob) *types.SearchResult {
	type slot struct {
		papers  []types.UnifiedPaper
		err     error
		elapsed time.Duration
	}
	slots := make([]slot, len(jobs))
	done := make(chan int, len(jobs))

	for i, job := range jobs {
		i, job := i, job
		go func() {
			sctx := ctx
			if a.cfg.SourceTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(ctx, a.cfg.SourceTimeout)
				defer cancel()
			}
			sreq := req
			if job.max > 0 && (sreq.MaxResults == 0 || job.max < sreq.MaxResults) {
				sreq.MaxResults = job.max
			}
			start := time.Now()
			papers, err := job.adapter.Search(sctx, sreq, a.search)
			slots[i] = slot{papers: papers, err: err, elapsed: time.Since(start)}
			done <- i
		}()
	}
	for range jobs {
		<-done
	}

	res := &types.SearchResult{PerSource: make(map[types.Source]types.SourceDiagnostics)}
	for i, job := range jobs {
		s := slots[i]
		diag := types.SourceDiagnostics{Count: len(s.papers), ElapsedMS: s.elapsed.Milliseconds()}
		if s.err != nil {
			diag.Error = s.err.Error()
			a.log.Warn().Err(s.err).Str("source", string(job.name)).Msg("source failed")
		} else {
			for j := range s.papers {
				s.papers[j].Priority = job.priority
			}
			res.Papers = append(res.Papers, s.papers...)
			res.SourcesUsed = append(res.SourcesUsed, job.name)
		}
		res.PerSource[job.name] = diag
		a.metrics.ObserveSearch(string(job.name), s.err != nil, s.elapsed.Seconds())
	}
	return res
}

// GetPaper fetches a single paper by source-native identifier.
func (a *Aggregator) GetPaper(ctx context.Context, src types.Source, id string) (*types.UnifiedPaper, error) {
	adapter, ok := a.adapters[src]
	if !ok {
		return nil, &ValidationError{Field: "source", Msg: fmt.Sprintf("unknown source %q", src)}
	}
	if id == "" {
		return nil, &ValidationError{Field: "id", Msg: "must not be empty"}
	}
	p := a.prefs.Get()
	paper, err := adapter.GetByID(ctx, id, a.search)
	if err != nil {
		return nil, err
	}
	if sp, ok := p.SourcePreference(src); ok {
		paper.Priority = sp.Priority
	}
	return paper, nil
}

// Related fetches papers related to a PubMed article. Only PubMed
// exposes a relatedness API.
func (a *Aggregator) Related(ctx context.Context, pmid string, max int) ([]types.UnifiedPaper, error) {
	if pmid == "" {
		return nil, &ValidationError{Field: "id", Msg: "must not be empty"}
	}
	adapter, ok := a.adapters[types.SourcePubMed].(*source.PubMedAdapter)
	if !ok {
		return nil, fmt.Errorf("pubmed: %w", source.ErrUnavailable)
	}
	if max <= 0 {
		max = a.prefs.Get().Search.MaxResults
	}
	return adapter.Related(ctx, pmid, max, a.search)
}

// FullText fetches the open-access body text of a PubMed article from
// PubMed Central.
func (a *Aggregator) FullText(ctx context.Context, pmid string) (*types.FullText, error) {
	if pmid == "" {
		return nil, &ValidationError{Field: "id", Msg: "must not be empty"}
	}
	adapter, ok := a.adapters[types.SourcePubMed].(*source.PubMedAdapter)
	if !ok {
		return nil, fmt.Errorf("pubmed: %w", source.ErrUnavailable)
	}
	return adapter.FullText(ctx, pmid, a.search)
}

// FullTextMatch is one paragraph matching a search-within query.
type FullTextMatch struct {
	Section   string `json:"section,omitempty"`
	Paragraph string `json:"paragraph"`
}

// SearchWithin returns the paragraphs of ft containing term,
// case-insensitively, with the section each came from.
func SearchWithin(ft *types.FullText, term string) []FullTextMatch {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil
	}
	var matches []FullTextMatch
	for _, sec := range ft.Sections {
		for _, p := range sec.Paragraphs {
			if strings.Contains(strings.ToLower(p), needle) {
				matches = append(matches, FullTextMatch{Section: sec.Title, Paragraph: p})
			}
		}
	}
	return matches
}

// MethodInfo describes one search method exposed by the aggregator.
type MethodInfo struct {
	Source      types.Source `json:"source"`
	Description string       `json:"description"`
	Confidence  float64      `json:"confidence"`
	Enabled     bool         `json:"enabled"`
	Priority    int          `json:"priority"`
}

// Methods reports the registered sources, their confidence levels and
// current preference state.
func (a *Aggregator) Methods() []MethodInfo {
	p := a.prefs.Get()
	descriptions := map[types.Source]string{
		types.SourcePubMed:        "NCBI E-utilities: structured biomedical metadata",
		types.SourceArxiv:         "arXiv Atom API: preprint metadata",
		types.SourceGoogleScholar: "Google Scholar via managed scraping or headless browser",
	}
	confidences := map[types.Source]float64{
		types.SourcePubMed:        source.ConfidencePubMed,
		types.SourceArxiv:         source.ConfidenceArxiv,
		types.SourceGoogleScholar: source.ConfidenceScholarBrowser,
	}
	var out []MethodInfo
	for _, name := range types.KnownSources {
		if _, ok := a.adapters[name]; !ok {
			continue
		}
		info := MethodInfo{Source: name, Description: descriptions[name], Confidence: confidences[name]}
		if sp, ok := p.SourcePreference(name); ok {
			info.Enabled = sp.Enabled
			info.Priority = sp.Priority
		}
		out = append(out, info)
	}
	return out
}

// applyDefaults fills unset request fields from preferences.
func applyDefaults(req *types.SearchRequest, p types.Preferences) {
	if req.MaxResults == 0 {
		req.MaxResults = p.Search.MaxResults
	}
	if req.SortBy == "" {
		req.SortBy = p.Search.DefaultSort
	}
}

func validateRequest(req types.SearchRequest) error {
	if req.Query == "" {
		return &ValidationError{Field: "query", Msg: "must not be empty"}
	}
	if req.MaxResults < 0 {
		return &ValidationError{Field: "max_results", Msg: "must not be negative"}
	}
	if !req.SortBy.Valid() {
		return &ValidationError{Field: "sort_by", Msg: fmt.Sprintf("unknown sort key %q", req.SortBy)}
	}
	for _, s := range req.Sources {
		if !s.Valid() {
			return &ValidationError{Field: "sources", Msg: fmt.Sprintf("unknown source %q", s)}
		}
	}
	if !req.StartDate.IsZero() && !req.EndDate.IsZero() && req.StartDate.After(req.EndDate) {
		return &ValidationError{Field: "start_date", Msg: "must not be after end_date"}
	}
	return nil
}

// resolveSources intersects the request's source list with the
// enabled, registered adapters and orders the jobs by priority.
func (a *Aggregator) resolveSources(req types.SearchRequest, p types.Preferences) ([]sourceJob, error) {
	requested := make(map[types.Source]bool)
	for _, s := range req.Sources {
		requested[s] = true
	}

	var jobs []sourceJob
	for name, adapter := range a.adapters {
		if len(requested) > 0 && !requested[name] {
			continue
		}
		sp, ok := p.SourcePreference(name)
		if !ok {
			continue
		}
		// An explicit request overrides the enabled flag; the user
		// asked for this source by name.
		if !sp.Enabled && !requested[name] {
			continue
		}
		jobs = append(jobs, sourceJob{name: name, adapter: adapter, priority: sp.Priority, max: sp.MaxResults})
	}
	if len(jobs) == 0 {
		return nil, &ValidationError{Field: "sources", Msg: "no enabled sources match the request"}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].priority != jobs[j].priority {
			return jobs[i].priority < jobs[j].priority
		}
		return jobs[i].name < jobs[j].name
	})
	return jobs, nil
}

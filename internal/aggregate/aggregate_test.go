// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scholarly/internal/source"
	"github.com/pdiddy/scholarly/pkg/types"
)

// mockAdapter is a canned source for aggregator tests.
type mockAdapter struct {
	name   types.Source
	papers []types.UnifiedPaper
	err    error
	delay  time.Duration
	calls  int
	byID   *types.UnifiedPaper
	idErr  error
}

func (m *mockAdapter) Name() types.Source { return m.name }

func (m *mockAdapter) Search(ctx context.Context, _ types.SearchRequest, _ types.SearchConfig) ([]types.UnifiedPaper, error) {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.papers, m.err
}

func (m *mockAdapter) GetByID(_ context.Context, _ string, _ types.SearchConfig) (*types.UnifiedPaper, error) {
	if m.idErr != nil {
		return nil, m.idErr
	}
	return m.byID, nil
}

// fixedPrefs is a PrefStore returning a static document.
type fixedPrefs struct{ p types.Preferences }

func (f fixedPrefs) Get() types.Preferences { return f.p.Clone() }

func intp(n int) *int { return &n }

func paper(src types.Source, title string, opts ...func(*types.UnifiedPaper)) types.UnifiedPaper {
	p := types.UnifiedPaper{Title: title, Source: src, Confidence: 0.9}
	for _, o := range opts {
		o(&p)
	}
	return p
}

func newTestAggregator(adapters map[types.Source]source.Adapter) *Aggregator {
	return New(adapters, fixedPrefs{types.DefaultPreferences()},
		types.AggregateConfig{SourceTimeout: 5 * time.Second},
		types.DefaultDedupConfig(),
		types.SearchConfig{MaxResults: 20},
		Options{Log: zerolog.Nop()})
}

func TestSearchMergesAllSources(t *testing.T) {
	pm := &mockAdapter{name: types.SourcePubMed, papers: []types.UnifiedPaper{
		paper(types.SourcePubMed, "Medical imaging survey"),
	}}
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{
		paper(types.SourceArxiv, "Transformers at scale"),
	}}
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: pm,
		types.SourceArxiv:  ax,
	})

	res, err := agg.Search(context.Background(), types.SearchRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Papers) != 2 {
		t.Fatalf("len(Papers) = %d, want 2", len(res.Papers))
	}
	if len(res.SourcesUsed) != 2 {
		t.Errorf("SourcesUsed = %v", res.SourcesUsed)
	}
	for _, p := range res.Papers {
		if p.Title == "" {
			t.Error("returned paper with empty title")
		}
	}
	// Diagnostics present for both sources.
	for _, src := range []types.Source{types.SourcePubMed, types.SourceArxiv} {
		d, ok := res.PerSource[src]
		if !ok {
			t.Errorf("missing diagnostics for %s", src)
			continue
		}
		if d.Count != 1 || d.Error != "" {
			t.Errorf("%s diagnostics = %+v", src, d)
		}
	}
}

func TestSearchDeterministicOrder(t *testing.T) {
	// The slower source has higher priority; its results must still
	// come first, regardless of completion order.
	pm := &mockAdapter{name: types.SourcePubMed, delay: 50 * time.Millisecond, papers: []types.UnifiedPaper{
		paper(types.SourcePubMed, "Slow but first"),
	}}
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{
		paper(types.SourceArxiv, "Fast but second"),
	}}
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: pm,
		types.SourceArxiv:  ax,
	})

	for i := 0; i < 3; i++ {
		res, err := agg.Search(context.Background(), types.SearchRequest{Query: "q"})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if res.Papers[0].Title != "Slow but first" {
			t.Fatalf("run %d: Papers[0] = %q, order not deterministic", i, res.Papers[0].Title)
		}
	}
}

func TestSearchWithin(t *testing.T) {
	ft := &types.FullText{
		PMID:  "31452104",
		PMCID: "PMC6690878",
		Sections: []types.FullTextSection{
			{Paragraphs: []string{"Imaging datasets have grown."}},
			{Title: "Methods", Paragraphs: []string{
				"We trained a convolutional network.",
				"Validation used a held-out cohort.",
			}},
			{Title: "Results", Paragraphs: []string{"The network reached 94 percent accuracy."}},
		},
	}

	matches := SearchWithin(ft, "NETWORK")
	if len(matches) != 2 {
		t.Fatalf("matches = %+v, want 2", matches)
	}
	if matches[0].Section != "Methods" || matches[1].Section != "Results" {
		t.Errorf("sections = %q, %q", matches[0].Section, matches[1].Section)
	}
	if matches[1].Paragraph != "The network reached 94 percent accuracy." {
		t.Errorf("Paragraph = %q", matches[1].Paragraph)
	}

	if got := SearchWithin(ft, "  "); got != nil {
		t.Errorf("blank term matched %+v", got)
	}
	if got := SearchWithin(ft, "quantum"); got != nil {
		t.Errorf("absent term matched %+v", got)
	}
}

func TestFullTextValidation(t *testing.T) {
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: &mockAdapter{name: types.SourcePubMed},
	})

	var verr *ValidationError
	if _, err := agg.FullText(context.Background(), ""); !errors.As(err, &verr) {
		t.Errorf("err = %v, want ValidationError for empty id", err)
	}
	// The registered adapter is not a PubMed adapter, so full text is
	// unavailable rather than invalid.
	if _, err := agg.FullText(context.Background(), "31452104"); !errors.Is(err, source.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestSearchDateSortIdempotent(t *testing.T) {
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{
		paper(types.SourceArxiv, "Alpha", func(p *types.UnifiedPaper) { p.Year = 2020 }),
		paper(types.SourceArxiv, "Beta", func(p *types.UnifiedPaper) { p.Year = 2022 }),
		paper(types.SourceArxiv, "Gamma", func(p *types.UnifiedPaper) { p.Year = 2022 }),
		paper(types.SourceArxiv, "Delta"),
	}}
	agg := newTestAggregator(map[types.Source]source.Adapter{types.SourceArxiv: ax})

	req := types.SearchRequest{Query: "q", SortBy: types.SortDate, NoDedup: true}
	first, err := agg.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := agg.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []string{"Beta", "Gamma", "Alpha", "Delta"}
	for i, title := range want {
		if first.Papers[i].Title != title {
			t.Errorf("first run Papers[%d] = %q, want %q", i, first.Papers[i].Title, title)
		}
		if second.Papers[i].Title != first.Papers[i].Title {
			t.Errorf("run ordering differs at %d: %q vs %q", i, second.Papers[i].Title, first.Papers[i].Title)
		}
	}
}

func TestSearchSourceFaultIsolation(t *testing.T) {
	pm := &mockAdapter{name: types.SourcePubMed, err: fmt.Errorf("esearch: %w", source.ErrUnavailable)}
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{
		paper(types.SourceArxiv, "Still here"),
	}}
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: pm,
		types.SourceArxiv:  ax,
	})

	res, err := agg.Search(context.Background(), types.SearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Search: %v, want success despite one failed source", err)
	}
	if len(res.Papers) != 1 || res.Papers[0].Title != "Still here" {
		t.Fatalf("Papers = %v", res.Papers)
	}
	if d := res.PerSource[types.SourcePubMed]; d.Error == "" {
		t.Error("failed source has no diagnostic error")
	}
	if len(res.SourcesUsed) != 1 || res.SourcesUsed[0] != types.SourceArxiv {
		t.Errorf("SourcesUsed = %v", res.SourcesUsed)
	}
	msgs := res.Errors()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "pubmed") || !strings.Contains(msgs[0], "esearch") {
		t.Errorf("Errors() = %v, want the pubmed failure message", msgs)
	}
}

func TestSearchAllSourcesFail(t *testing.T) {
	pm := &mockAdapter{name: types.SourcePubMed, err: fmt.Errorf("esearch: %w", source.ErrUnavailable)}
	ax := &mockAdapter{name: types.SourceArxiv, err: fmt.Errorf("atom feed: %w", source.ErrParse)}
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: pm,
		types.SourceArxiv:  ax,
	})

	res, err := agg.Search(context.Background(), types.SearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Search: %v, want empty result when every source fails", err)
	}
	if len(res.Papers) != 0 {
		t.Fatalf("Papers = %v, want none", res.Papers)
	}
	if len(res.SourcesUsed) != 0 {
		t.Errorf("SourcesUsed = %v, want none", res.SourcesUsed)
	}
	for _, s := range []types.Source{types.SourcePubMed, types.SourceArxiv} {
		if res.PerSource[s].Error == "" {
			t.Errorf("PerSource[%s].Error empty", s)
		}
	}
	msgs := res.Errors()
	if len(msgs) != 2 {
		t.Fatalf("Errors() = %v, want one message per failed source", msgs)
	}
	// Source-name order: arxiv before pubmed.
	if !strings.Contains(msgs[0], "arxiv: atom feed") || !strings.Contains(msgs[1], "pubmed: esearch") {
		t.Errorf("Errors() = %v", msgs)
	}
}

func TestSearchSourceTimeout(t *testing.T) {
	slow := &mockAdapter{name: types.SourceArxiv, delay: time.Second, papers: []types.UnifiedPaper{
		paper(types.SourceArxiv, "Too slow"),
	}}
	fast := &mockAdapter{name: types.SourcePubMed, papers: []types.UnifiedPaper{
		paper(types.SourcePubMed, "On time"),
	}}
	agg := New(map[types.Source]source.Adapter{types.SourceArxiv: slow, types.SourcePubMed: fast},
		fixedPrefs{types.DefaultPreferences()},
		types.AggregateConfig{SourceTimeout: 20 * time.Millisecond},
		types.DefaultDedupConfig(),
		types.SearchConfig{},
		Options{Log: zerolog.Nop()})

	res, err := agg.Search(context.Background(), types.SearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Papers) != 1 || res.Papers[0].Title != "On time" {
		t.Fatalf("Papers = %v, want only the fast source", res.Papers)
	}
	if d := res.PerSource[types.SourceArxiv]; d.Error == "" {
		t.Error("timed-out source has no diagnostic error")
	}
}

func TestSearchEmptyQueryValidation(t *testing.T) {
	pm := &mockAdapter{name: types.SourcePubMed}
	agg := newTestAggregator(map[types.Source]source.Adapter{types.SourcePubMed: pm})

	_, err := agg.Search(context.Background(), types.SearchRequest{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != "query" {
		t.Errorf("Field = %q, want query", verr.Field)
	}
	if pm.calls != 0 {
		t.Errorf("adapter called %d times before validation", pm.calls)
	}
}

func TestSearchRejectsUnknownSource(t *testing.T) {
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: &mockAdapter{name: types.SourcePubMed},
	})
	_, err := agg.Search(context.Background(), types.SearchRequest{
		Query:   "q",
		Sources: []types.Source{"crossref"},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestSearchSourceSubset(t *testing.T) {
	pm := &mockAdapter{name: types.SourcePubMed, papers: []types.UnifiedPaper{paper(types.SourcePubMed, "A")}}
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{paper(types.SourceArxiv, "B")}}
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: pm,
		types.SourceArxiv:  ax,
	})

	res, err := agg.Search(context.Background(), types.SearchRequest{
		Query:   "q",
		Sources: []types.Source{types.SourceArxiv},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if pm.calls != 0 {
		t.Errorf("pubmed called despite source subset")
	}
	if len(res.Papers) != 1 || res.Papers[0].Source != types.SourceArxiv {
		t.Errorf("Papers = %v", res.Papers)
	}
}

func TestSearchDisabledSourceSkipped(t *testing.T) {
	pm := &mockAdapter{name: types.SourcePubMed, papers: []types.UnifiedPaper{paper(types.SourcePubMed, "A")}}
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{paper(types.SourceArxiv, "B")}}

	p := types.DefaultPreferences()
	for i := range p.Sources {
		if p.Sources[i].Name == types.SourceArxiv {
			p.Sources[i].Enabled = false
		}
	}
	agg := New(map[types.Source]source.Adapter{types.SourcePubMed: pm, types.SourceArxiv: ax},
		fixedPrefs{p}, types.AggregateConfig{}, types.DefaultDedupConfig(), types.SearchConfig{},
		Options{Log: zerolog.Nop()})

	res, err := agg.Search(context.Background(), types.SearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ax.calls != 0 {
		t.Error("disabled source was queried")
	}
	if len(res.Papers) != 1 {
		t.Errorf("Papers = %v", res.Papers)
	}
}

func TestSearchExplicitRequestOverridesDisabled(t *testing.T) {
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{paper(types.SourceArxiv, "B")}}

	p := types.DefaultPreferences()
	for i := range p.Sources {
		p.Sources[i].Enabled = p.Sources[i].Name != types.SourceArxiv
	}
	agg := New(map[types.Source]source.Adapter{types.SourceArxiv: ax},
		fixedPrefs{p}, types.AggregateConfig{}, types.DefaultDedupConfig(), types.SearchConfig{},
		Options{Log: zerolog.Nop()})

	res, err := agg.Search(context.Background(), types.SearchRequest{
		Query:   "q",
		Sources: []types.Source{types.SourceArxiv},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Papers) != 1 {
		t.Errorf("explicitly requested disabled source returned %d papers", len(res.Papers))
	}
}

func TestSearchDedupAcrossSources(t *testing.T) {
	pm := &mockAdapter{name: types.SourcePubMed, papers: []types.UnifiedPaper{
		paper(types.SourcePubMed, "ML Review", func(p *types.UnifiedPaper) { p.PMID = "1"; p.Authors = []string{"Ann Smith"} }),
	}}
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{
		paper(types.SourceArxiv, "ml review", func(p *types.UnifiedPaper) { p.ArxivID = "2301.1"; p.Authors = []string{"A Smith"} }),
	}}
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: pm,
		types.SourceArxiv:  ax,
	})

	res, err := agg.Search(context.Background(), types.SearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Dedup.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d, want 1", res.Dedup.DuplicatesRemoved)
	}
	if len(res.Papers) != 1 {
		t.Fatalf("len(Papers) = %d, want 1", len(res.Papers))
	}
	// PubMed has higher priority in the defaults, so it represents.
	if res.Papers[0].Source != types.SourcePubMed {
		t.Errorf("representative source = %q, want pubmed", res.Papers[0].Source)
	}
}

func TestSearchNoDedupFlag(t *testing.T) {
	pm := &mockAdapter{name: types.SourcePubMed, papers: []types.UnifiedPaper{
		paper(types.SourcePubMed, "Same Title"),
	}}
	ax := &mockAdapter{name: types.SourceArxiv, papers: []types.UnifiedPaper{
		paper(types.SourceArxiv, "Same Title"),
	}}
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: pm,
		types.SourceArxiv:  ax,
	})

	res, err := agg.Search(context.Background(), types.SearchRequest{Query: "q", NoDedup: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Papers) != 2 {
		t.Errorf("len(Papers) = %d, want 2 with dedup off", len(res.Papers))
	}
	if res.Dedup.DuplicatesRemoved != 0 {
		t.Errorf("DuplicatesRemoved = %d, want 0", res.Dedup.DuplicatesRemoved)
	}
}

func TestSearchMaxResultsCap(t *testing.T) {
	var many []types.UnifiedPaper
	for i := 0; i < 10; i++ {
		many = append(many, paper(types.SourceArxiv, fmt.Sprintf("Paper %d", i)))
	}
	ax := &mockAdapter{name: types.SourceArxiv, papers: many}
	agg := newTestAggregator(map[types.Source]source.Adapter{types.SourceArxiv: ax})

	res, err := agg.Search(context.Background(), types.SearchRequest{Query: "q", MaxResults: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Papers) != 3 {
		t.Errorf("len(Papers) = %d, want 3", len(res.Papers))
	}
}

func TestGetPaper(t *testing.T) {
	want := paper(types.SourcePubMed, "Single", func(p *types.UnifiedPaper) { p.PMID = "42" })
	pm := &mockAdapter{name: types.SourcePubMed, byID: &want}
	agg := newTestAggregator(map[types.Source]source.Adapter{types.SourcePubMed: pm})

	p, err := agg.GetPaper(context.Background(), types.SourcePubMed, "42")
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if p.PMID != "42" {
		t.Errorf("PMID = %q", p.PMID)
	}

	if _, err := agg.GetPaper(context.Background(), "nope", "42"); err == nil {
		t.Error("expected error for unknown source")
	}
	if _, err := agg.GetPaper(context.Background(), types.SourcePubMed, ""); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestMethods(t *testing.T) {
	agg := newTestAggregator(map[types.Source]source.Adapter{
		types.SourcePubMed: &mockAdapter{name: types.SourcePubMed},
		types.SourceArxiv:  &mockAdapter{name: types.SourceArxiv},
	})
	methods := agg.Methods()
	if len(methods) != 2 {
		t.Fatalf("len(methods) = %d, want 2", len(methods))
	}
	for _, m := range methods {
		if m.Description == "" || m.Confidence == 0 {
			t.Errorf("method %s incomplete: %+v", m.Source, m)
		}
	}
}

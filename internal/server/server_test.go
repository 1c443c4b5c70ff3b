// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pdiddy/scholarly/internal/aggregate"
	"github.com/pdiddy/scholarly/internal/prefs"
	"github.com/pdiddy/scholarly/internal/source"
	"github.com/pdiddy/scholarly/pkg/types"
)

type stubAdapter struct {
	name   types.Source
	papers []types.UnifiedPaper
}

func (s *stubAdapter) Name() types.Source { return s.name }

func (s *stubAdapter) Search(ctx context.Context, req types.SearchRequest, cfg types.SearchConfig) ([]types.UnifiedPaper, error) {
	return s.papers, nil
}

func (s *stubAdapter) GetByID(ctx context.Context, id string, cfg types.SearchConfig) (*types.UnifiedPaper, error) {
	for i := range s.papers {
		if s.papers[i].ID() == id {
			return &s.papers[i], nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", s.name, id, source.ErrNotFound)
}

func newTestServer(t *testing.T) (*gin.Engine, *prefs.Store) {
	t.Helper()

	store := prefs.Load(filepath.Join(t.TempDir(), "preferences.json"), zerolog.Nop())
	adapters := map[types.Source]source.Adapter{
		types.SourcePubMed: &stubAdapter{
			name: types.SourcePubMed,
			papers: []types.UnifiedPaper{
				{PMID: "31452104", Title: "Deep learning in medical imaging", Authors: []string{"Wei Chen"}, Year: 2019, Source: types.SourcePubMed},
			},
		},
	}
	agg := aggregate.New(adapters, store, types.AggregateConfig{}, types.DefaultDedupConfig(), types.SearchConfig{}, aggregate.Options{Log: zerolog.Nop()})

	srv := New(agg, store, prometheus.NewRegistry(), zerolog.Nop())
	return srv.Router(), store
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(t, r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestMetricsRoute(t *testing.T) {
	r, _ := newTestServer(t)
	if w := do(t, r, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSearch(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(t, r, http.MethodPost, "/search", `{"query": "deep learning"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var res types.SearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(res.Papers) != 1 || res.Papers[0].PMID != "31452104" {
		t.Errorf("papers = %+v", res.Papers)
	}
	if len(res.SourcesUsed) != 1 || res.SourcesUsed[0] != types.SourcePubMed {
		t.Errorf("sources_used = %v", res.SourcesUsed)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(t, r, http.MethodPost, "/search", `{"query": ""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSearchMalformedBody(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(t, r, http.MethodPost, "/search", `{"query":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetPaper(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(t, r, http.MethodGet, "/papers/pubmed/31452104", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var p types.UnifiedPaper
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if p.Title != "Deep learning in medical imaging" {
		t.Errorf("title = %q", p.Title)
	}
}

func TestGetPaperNotFound(t *testing.T) {
	r, _ := newTestServer(t)
	if w := do(t, r, http.MethodGet, "/papers/pubmed/999", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetPaperUnknownSource(t *testing.T) {
	r, _ := newTestServer(t)
	if w := do(t, r, http.MethodGet, "/papers/semantic-scholar/1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRelatedNonPubMed(t *testing.T) {
	r, _ := newTestServer(t)
	if w := do(t, r, http.MethodGet, "/papers/arxiv/2301.07041/related", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFullTextNonPubMed(t *testing.T) {
	r, _ := newTestServer(t)
	if w := do(t, r, http.MethodGet, "/papers/arxiv/2301.07041/fulltext", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFullTextAdapterUnavailable(t *testing.T) {
	// The stub adapter has no PMC backend, so the route reports a
	// gateway failure rather than a client error.
	r, _ := newTestServer(t)
	if w := do(t, r, http.MethodGet, "/papers/pubmed/31452104/fulltext", ""); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestCitation(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(t, r, http.MethodGet, "/papers/pubmed/31452104/citation?style=apa", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Style    string `json:"style"`
		Citation string `json:"citation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Style != "apa" || !strings.Contains(body.Citation, "Chen, W.") {
		t.Errorf("body = %+v", body)
	}

	if w := do(t, r, http.MethodGet, "/papers/pubmed/31452104/citation?style=chicago", ""); w.Code != http.StatusBadRequest {
		t.Errorf("unknown style: status = %d, want 400", w.Code)
	}
}

func TestMethods(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(t, r, http.MethodGet, "/methods", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Methods []aggregate.MethodInfo `json:"methods"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Methods) != 1 || body.Methods[0].Source != types.SourcePubMed {
		t.Errorf("methods = %+v", body.Methods)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	r, store := newTestServer(t)

	w := do(t, r, http.MethodPut, "/preferences/sources/arxiv", `{"enabled": false, "priority": 7}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	p := store.Get()
	sp, ok := p.SourcePreference(types.SourceArxiv)
	if !ok || sp.Enabled || sp.Priority != 7 {
		t.Errorf("arxiv preference = %+v", sp)
	}

	if w := do(t, r, http.MethodPut, "/preferences/sources/semantic-scholar", `{"enabled": true}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown source: status = %d, want 400", w.Code)
	}

	if w := do(t, r, http.MethodPut, "/preferences/search", `{"max_results": 50}`); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if got := store.Get().Search.MaxResults; got != 50 {
		t.Errorf("max_results = %d, want 50", got)
	}

	if w := do(t, r, http.MethodPost, "/preferences/reset", ""); w.Code != http.StatusOK {
		t.Errorf("reset: status = %d", w.Code)
	}
	def := types.DefaultPreferences()
	if got := store.Get().Search.MaxResults; got != def.Search.MaxResults {
		t.Errorf("max_results = %d after reset, want %d", got, def.Search.MaxResults)
	}
}

func TestPreferencesExportImport(t *testing.T) {
	r, store := newTestServer(t)

	w := do(t, r, http.MethodGet, "/preferences/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export: status = %d", w.Code)
	}

	if w := do(t, r, http.MethodPost, "/preferences/import", w.Body.String()); w.Code != http.StatusOK {
		t.Errorf("import: status = %d, body %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodPost, "/preferences/import", `{"sources": []}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad import: status = %d, want 400", w.Code)
	}
	if got := store.Get(); len(got.Sources) == 0 {
		t.Error("failed import changed stored state")
	}
}

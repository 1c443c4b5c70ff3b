// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/scholarly/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ConfidenceArxiv reflects arXiv's clean, self-reported metadata.
const ConfidenceArxiv = 0.95

// ArxivAdapter queries the arXiv Atom API.
type ArxivAdapter struct {
	Client *http.Client
}

// Name returns the source identifier.
func (a *ArxivAdapter) Name() types.Source { return types.SourceArxiv }

// Search queries the arXiv API and returns normalized results. arXiv
// does not report citation counts, so Citations stays nil.
func (a *ArxivAdapter) Search(ctx context.Context, req types.SearchRequest, cfg types.SearchConfig) ([]types.UnifiedPaper, error) {
	q := buildArxivQuery(req)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	reqURL := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, q, capResults(cfg.MaxResults))

	feed, err := a.fetchFeed(ctx, reqURL, cfg)
	if err != nil {
		return nil, err
	}

	var papers []types.UnifiedPaper
	for _, entry := range feed.Entries {
		p, ok := a.normalize(entry)
		if !ok {
			continue
		}
		if !inDateRange(p.Year, req.StartDate, req.EndDate) {
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// GetByID fetches a single paper by arXiv ID (e.g. "2301.07041").
func (a *ArxivAdapter) GetByID(ctx context.Context, id string, cfg types.SearchConfig) (*types.UnifiedPaper, error) {
	reqURL := fmt.Sprintf("%s?id_list=%s&max_results=1", arxivAPIBase, url.QueryEscape(id))

	feed, err := a.fetchFeed(ctx, reqURL, cfg)
	if err != nil {
		return nil, err
	}
	for _, entry := range feed.Entries {
		if p, ok := a.normalize(entry); ok {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("arXiv ID %q: %w", id, ErrNotFound)
}

func (a *ArxivAdapter) fetchFeed(ctx context.Context, reqURL string, cfg types.SearchConfig) (*arxivFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w: %v", ErrParse, err)
	}
	return &feed, nil
}

// normalize maps one Atom entry to a UnifiedPaper. Entries without an
// extractable ID or title are dropped.
func (a *ArxivAdapter) normalize(entry arxivEntry) (types.UnifiedPaper, bool) {
	arxivID := extractArxivID(entry.ID)
	title := collapseWhitespace(entry.Title)
	if arxivID == "" || title == "" {
		return types.UnifiedPaper{}, false
	}

	p := types.UnifiedPaper{
		ArxivID:    arxivID,
		DOI:        entry.DOI,
		Title:      title,
		Abstract:   collapseWhitespace(entry.Summary),
		URL:        "https://arxiv.org/abs/" + arxivID,
		Source:     types.SourceArxiv,
		Confidence: ConfidenceArxiv,
	}

	for _, au := range entry.Authors {
		if name := strings.TrimSpace(au.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		p.Year = t.Year()
	}
	return p, true
}

// buildArxivQuery constructs the search_query parameter.
func buildArxivQuery(req types.SearchRequest) string {
	terms := strings.Fields(req.Query)
	if len(terms) == 0 {
		return ""
	}
	return "all:" + strings.Join(terms, "+")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	DOI       string        `xml:"doi"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

// collapseWhitespace trims a string and folds internal runs of
// whitespace (arXiv wraps titles and abstracts with newlines).
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// inDateRange reports whether a publication year falls inside the
// optional request bounds. Unknown years pass (the source could not be
// filtered server-side either).
func inDateRange(year int, from, to time.Time) bool {
	if year == 0 {
		return true
	}
	if !from.IsZero() && year < from.Year() {
		return false
	}
	if !to.IsZero() && year > to.Year() {
		return false
	}
	return true
}

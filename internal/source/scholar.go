// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/scholarly/pkg/types"
)

// scholarBase is the Google Scholar search URL prefix. Declared as a
// var so tests can point the adapter at fixture pages.
var scholarBase = "https://scholar.google.com/scholar"

// ConfidenceScholarBrowser reflects scraped result-page metadata: titles are
// reliable, bylines are truncated and heuristically parsed.
const ConfidenceScholarBrowser = 0.6

// PageFetcher returns the rendered HTML of a URL. Browser implements
// it; tests substitute a canned-page fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ScholarAdapter scrapes Google Scholar result pages through an
// injected headless-browser resource.
type ScholarAdapter struct {
	Fetcher PageFetcher
}

// Name returns the source identifier.
func (a *ScholarAdapter) Name() types.Source { return types.SourceGoogleScholar }

// Search renders one Scholar result page and parses its entries.
func (a *ScholarAdapter) Search(ctx context.Context, req types.SearchRequest, cfg types.SearchConfig) ([]types.UnifiedPaper, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty Scholar query")
	}

	params := url.Values{
		"q":  {req.Query},
		"hl": {"en"},
	}
	if !req.StartDate.IsZero() {
		params.Set("as_ylo", strconv.Itoa(req.StartDate.Year()))
	}
	if !req.EndDate.IsZero() {
		params.Set("as_yhi", strconv.Itoa(req.EndDate.Year()))
	}

	html, err := a.Fetcher.Fetch(ctx, scholarBase+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	papers, err := parseScholarPage(html)
	if err != nil {
		return nil, err
	}
	if max := capResults(cfg.MaxResults); len(papers) > max {
		papers = papers[:max]
	}
	return papers, nil
}

// GetByID is not meaningful for Scholar, which assigns no stable
// public identifiers.
func (a *ScholarAdapter) GetByID(ctx context.Context, id string, cfg types.SearchConfig) (*types.UnifiedPaper, error) {
	return nil, fmt.Errorf("scholar lookup for %q: %w", id, ErrNotFound)
}

// parseScholarPage extracts result entries from a rendered Scholar
// page. An empty result block set on a non-empty page usually means a
// CAPTCHA interstitial, reported as a parse failure.
func parseScholarPage(html string) ([]types.UnifiedPaper, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing Scholar page: %w: %v", ErrParse, err)
	}

	if doc.Find("#gs_captcha_f, #captcha-form").Length() > 0 {
		return nil, fmt.Errorf("Scholar served a CAPTCHA page: %w", ErrParse)
	}

	var papers []types.UnifiedPaper
	doc.Find("div.gs_r.gs_or.gs_scl").Each(func(_ int, sel *goquery.Selection) {
		title := stripScholarPrefix(collapseWhitespace(sel.Find("h3.gs_rt").Text()))
		if title == "" {
			return
		}

		p := types.UnifiedPaper{
			Title:      title,
			Abstract:   collapseWhitespace(sel.Find("div.gs_rs").Text()),
			Source:     types.SourceGoogleScholar,
			Confidence: ConfidenceScholarBrowser,
		}

		if href, ok := sel.Find("h3.gs_rt a").Attr("href"); ok {
			p.URL = href
		}

		authors, venue, year := parseScholarByline(sel.Find("div.gs_a").Text())
		p.Authors = authors
		p.Journal = venue
		p.Year = year

		sel.Find("div.gs_fl a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			if m := reCitedBy.FindStringSubmatch(link.Text()); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
					p.Citations = &n
				}
				return false
			}
			return true
		})

		papers = append(papers, p)
	})
	return papers, nil
}

// parseScholarByline splits the green byline under a Scholar result:
// "A Vaswani, N Shazeer… - Advances in neural information…, 2017 - nips.cc".
func parseScholarByline(byline string) (authors []string, venue string, year int) {
	byline = collapseWhitespace(byline)
	if byline == "" {
		return nil, "", 0
	}

	parts := strings.Split(byline, " - ")

	for _, name := range strings.Split(parts[0], ",") {
		name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), "…"))
		if name != "" && name != "…" {
			authors = append(authors, name)
		}
	}

	if len(parts) > 1 {
		venuePart := parts[1]
		if m := reYear.FindString(venuePart); m != "" {
			if y, err := strconv.Atoi(m); err == nil {
				year = y
			}
			venuePart = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(venuePart), ", "+m))
			venuePart = strings.TrimSuffix(venuePart, m)
		}
		venue = strings.Trim(strings.TrimSpace(venuePart), ",")
	}
	return authors, venue, year
}

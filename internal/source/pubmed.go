// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/scholarly/internal/httputil"
	"github.com/pdiddy/scholarly/pkg/types"
)

// eutilsBase is the NCBI E-utilities endpoint prefix. Declared as a var
// so tests can substitute an httptest server.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// ConfidencePubMed reflects curated MEDLINE metadata.
const ConfidencePubMed = 0.9

// PubMedAdapter queries PubMed through the NCBI E-utilities: esearch
// for PMIDs, efetch for article records, elink for related papers.
// NCBI allows 3 requests/second anonymously and 10/second with an API
// key; the limiter enforces the anonymous ceiling and is raised when a
// key is configured.
type PubMedAdapter struct {
	Client  *http.Client
	limiter *rate.Limiter
}

// NewPubMedAdapter returns an adapter with the anonymous rate limit.
// Pass hasAPIKey when an NCBI key will be sent with each request.
func NewPubMedAdapter(client *http.Client, hasAPIKey bool) *PubMedAdapter {
	limit := rate.Limit(3)
	if hasAPIKey {
		limit = rate.Limit(10)
	}
	return &PubMedAdapter{
		Client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name returns the source identifier.
func (a *PubMedAdapter) Name() types.Source { return types.SourcePubMed }

// Search runs esearch then efetch and returns normalized results in
// PubMed's relevance order.
func (a *PubMedAdapter) Search(ctx context.Context, req types.SearchRequest, cfg types.SearchConfig) ([]types.UnifiedPaper, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty PubMed query")
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {req.Query},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(capResults(cfg.MaxResults))},
		"sort":    {"relevance"},
	}
	if !req.StartDate.IsZero() || !req.EndDate.IsZero() {
		params.Set("datetype", "pdat")
		if !req.StartDate.IsZero() {
			params.Set("mindate", req.StartDate.Format("2006/01/02"))
		}
		if !req.EndDate.IsZero() {
			params.Set("maxdate", req.EndDate.Format("2006/01/02"))
		}
	}

	body, err := a.get(ctx, "/esearch.fcgi", params, cfg)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var sr esearchResponse
	if err := json.NewDecoder(body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing esearch response: %w: %v", ErrParse, err)
	}
	if len(sr.Result.IDList) == 0 {
		return nil, nil
	}

	return a.fetchByPMIDs(ctx, sr.Result.IDList, cfg)
}

// GetByID fetches one paper by PMID.
func (a *PubMedAdapter) GetByID(ctx context.Context, id string, cfg types.SearchConfig) (*types.UnifiedPaper, error) {
	papers, err := a.fetchByPMIDs(ctx, []string{id}, cfg)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("PMID %q: %w", id, ErrNotFound)
	}
	return &papers[0], nil
}

// Related returns papers PubMed links as neighbors of pmid, most
// similar first, capped at max.
func (a *PubMedAdapter) Related(ctx context.Context, pmid string, max int, cfg types.SearchConfig) ([]types.UnifiedPaper, error) {
	params := url.Values{
		"dbfrom":  {"pubmed"},
		"db":      {"pubmed"},
		"id":      {pmid},
		"cmd":     {"neighbor_score"},
		"retmode": {"json"},
	}

	body, err := a.get(ctx, "/elink.fcgi", params, cfg)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var lr elinkResponse
	if err := json.NewDecoder(body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("parsing elink response: %w: %v", ErrParse, err)
	}

	var ids []string
	for _, set := range lr.LinkSets {
		for _, db := range set.LinkSetDBs {
			if db.LinkName != "pubmed_pubmed" {
				continue
			}
			for _, link := range db.Links {
				if link.ID == pmid {
					continue
				}
				ids = append(ids, link.ID)
				if max > 0 && len(ids) >= max {
					break
				}
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return a.fetchByPMIDs(ctx, ids, cfg)
}

// fetchByPMIDs runs efetch and normalizes the XML article set,
// preserving the input ID order.
func (a *PubMedAdapter) fetchByPMIDs(ctx context.Context, pmids []string, cfg types.SearchConfig) ([]types.UnifiedPaper, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}

	body, err := a.get(ctx, "/efetch.fcgi", params, cfg)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var set pubmedArticleSet
	if err := xml.NewDecoder(body).Decode(&set); err != nil {
		return nil, fmt.Errorf("parsing efetch response: %w: %v", ErrParse, err)
	}

	byPMID := make(map[string]types.UnifiedPaper, len(set.Articles))
	for _, art := range set.Articles {
		if p, ok := normalizePubmedArticle(art); ok {
			byPMID[p.PMID] = p
		}
	}

	// efetch does not guarantee input order; restore it.
	var papers []types.UnifiedPaper
	for _, id := range pmids {
		if p, ok := byPMID[id]; ok {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// get issues one rate-limited E-utilities request and returns the body.
func (a *PubMedAdapter) get(ctx context.Context, path string, params url.Values, cfg types.SearchConfig) (io.ReadCloser, error) {
	if cfg.NCBIAPIKey != "" {
		params.Set("api_key", cfg.NCBIAPIKey)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, eutilsBase+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("E-utilities request: %w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("E-utilities returned HTTP %d: %w", resp.StatusCode, ErrUnavailable)
	}
	return resp.Body, nil
}

// normalizePubmedArticle maps one MEDLINE citation to a UnifiedPaper.
// Articles without a title are dropped.
func normalizePubmedArticle(art pubmedArticle) (types.UnifiedPaper, bool) {
	title := collapseWhitespace(art.Citation.Article.Title)
	if title == "" || art.Citation.PMID == "" {
		return types.UnifiedPaper{}, false
	}

	p := types.UnifiedPaper{
		PMID:       art.Citation.PMID,
		Title:      title,
		Journal:    art.Citation.Article.Journal.Title,
		URL:        "https://pubmed.ncbi.nlm.nih.gov/" + art.Citation.PMID + "/",
		Source:     types.SourcePubMed,
		Confidence: ConfidencePubMed,
	}

	// Structured abstracts arrive as labeled sections; join them.
	var parts []string
	for _, sec := range art.Citation.Article.Abstract.Sections {
		text := collapseWhitespace(sec.Text)
		if text == "" {
			continue
		}
		if sec.Label != "" {
			text = sec.Label + ": " + text
		}
		parts = append(parts, text)
	}
	p.Abstract = strings.Join(parts, " ")

	for _, au := range art.Citation.Article.Authors {
		switch {
		case au.CollectiveName != "":
			p.Authors = append(p.Authors, au.CollectiveName)
		case au.ForeName != "":
			p.Authors = append(p.Authors, au.ForeName+" "+au.LastName)
		case au.LastName != "":
			p.Authors = append(p.Authors, au.LastName)
		}
	}

	pubDate := art.Citation.Article.Journal.Issue.PubDate
	if y, err := strconv.Atoi(pubDate.Year); err == nil {
		p.Year = y
	} else if len(pubDate.MedlineDate) >= 4 {
		// MedlineDate covers irregular dates like "2020 Nov-Dec".
		if y, err := strconv.Atoi(pubDate.MedlineDate[:4]); err == nil {
			p.Year = y
		}
	}

	for _, aid := range art.ArticleIDs {
		if aid.IDType == "doi" {
			p.DOI = strings.TrimSpace(aid.Value)
		}
	}
	return p, true
}

// E-utilities response structures.
type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	Count  string   `json:"count"`
	IDList []string `json:"idlist"`
}

type elinkResponse struct {
	LinkSets []elinkSet `json:"linksets"`
}

type elinkSet struct {
	LinkSetDBs []elinkSetDB `json:"linksetdbs"`
}

type elinkSetDB struct {
	LinkName string      `json:"linkname"`
	Links    []elinkLink `json:"links"`
}

type elinkLink struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation   medlineCitation `xml:"MedlineCitation"`
	ArticleIDs []pubmedID      `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type medlineCitation struct {
	PMID    string        `xml:"PMID"`
	Article pubmedDetails `xml:"Article"`
}

type pubmedDetails struct {
	Title    string         `xml:"ArticleTitle"`
	Abstract pubmedAbstract `xml:"Abstract"`
	Authors  []pubmedAuthor `xml:"AuthorList>Author"`
	Journal  pubmedJournal  `xml:"Journal"`
}

type pubmedAbstract struct {
	Sections []pubmedAbstractSection `xml:"AbstractText"`
}

type pubmedAbstractSection struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type pubmedAuthor struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	CollectiveName string `xml:"CollectiveName"`
}

type pubmedJournal struct {
	Title string             `xml:"Title"`
	Issue pubmedJournalIssue `xml:"JournalIssue"`
}

type pubmedJournalIssue struct {
	PubDate pubmedPubDate `xml:"PubDate"`
}

type pubmedPubDate struct {
	Year        string `xml:"Year"`
	MedlineDate string `xml:"MedlineDate"`
}

type pubmedID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

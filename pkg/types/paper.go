// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the scholarly
// aggregation pipeline: the unified paper record, search requests and
// responses, preferences, and stage configuration.
package types

// Source identifies a paper database.
type Source string

const (
	SourcePubMed        Source = "pubmed"
	SourceGoogleScholar Source = "google-scholar"
	SourceArxiv         Source = "arxiv"
)

// KnownSources lists every source the aggregator can query, in default
// priority order.
var KnownSources = []Source{SourcePubMed, SourceArxiv, SourceGoogleScholar}

// Valid reports whether s names a known source.
func (s Source) Valid() bool {
	switch s {
	case SourcePubMed, SourceGoogleScholar, SourceArxiv:
		return true
	}
	return false
}

// UnifiedPaper is one paper after normalization from any source.
// Adapters construct it once per raw record; nothing mutates it
// afterwards. A record without an extractable title is dropped by the
// adapter and never enters the pipeline.
type UnifiedPaper struct {
	// PMID is the PubMed identifier, set only for pubmed records.
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// ArxivID is the arXiv identifier (e.g. "2301.07041"), set only
	// for arxiv records.
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	// DOI is a cross-source identity hint when the source exposes one.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title is the paper title. Always non-empty.
	Title string `json:"title" yaml:"title"`

	// Authors lists author names in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Abstract is the abstract or snippet text. May be empty.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Journal is the journal or venue name when known.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Citations is the citation count; nil when the source does not
	// report one.
	Citations *int `json:"citations,omitempty" yaml:"citations,omitempty"`

	// URL points at the source's landing page for the paper.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source identifies the originating database.
	Source Source `json:"source" yaml:"source"`

	// Priority is the originating source's preference weight at the
	// time of the search; lower is preferred in dedup tie-breaks.
	Priority int `json:"priority" yaml:"priority"`

	// Confidence in [0,1] reflects how much the normalization trusted
	// the source's metadata.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// ID returns the paper's source-native identifier: PMID for pubmed,
// arXiv ID for arxiv, then DOI, then URL.
func (p UnifiedPaper) ID() string {
	switch {
	case p.PMID != "":
		return p.PMID
	case p.ArxivID != "":
		return p.ArxivID
	case p.DOI != "":
		return p.DOI
	}
	return p.URL
}

// CitationCount returns the citation count, treating unknown as zero.
func (p UnifiedPaper) CitationCount() int {
	if p.Citations == nil {
		return 0
	}
	return *p.Citations
}

// FullText is the body text of an open-access article retrieved from
// PubMed Central, split into the document's own sections.
type FullText struct {
	// PMID is the PubMed identifier the text was looked up by.
	PMID string `json:"pmid" yaml:"pmid"`

	// PMCID is the PubMed Central identifier the text came from.
	PMCID string `json:"pmcid" yaml:"pmcid"`

	// Sections holds the body in document order. Text preceding the
	// first titled section appears as a section with an empty title.
	Sections []FullTextSection `json:"sections" yaml:"sections"`
}

// FullTextSection is one titled run of paragraphs.
type FullTextSection struct {
	Title      string   `json:"title,omitempty" yaml:"title,omitempty"`
	Paragraphs []string `json:"paragraphs" yaml:"paragraphs"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pdiddy/scholarly/pkg/types"
)

// FullText retrieves the body text of an article from PubMed Central.
// Only open-access articles deposited in PMC have retrievable text;
// anything else reports ErrNotFound. The lookup is two E-utilities
// calls: elink maps the PMID to a PMC ID, efetch returns the JATS XML.
func (a *PubMedAdapter) FullText(ctx context.Context, pmid string, cfg types.SearchConfig) (*types.FullText, error) {
	pmcid, err := a.linkToPMC(ctx, pmid, cfg)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"db":      {"pmc"},
		"id":      {pmcid},
		"retmode": {"xml"},
	}
	body, err := a.get(ctx, "/efetch.fcgi", params, cfg)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	sections, err := parseJATSBody(xml.NewDecoder(body))
	if err != nil {
		return nil, fmt.Errorf("parsing PMC article: %w: %v", ErrParse, err)
	}
	if len(sections) == 0 {
		// PMC returns a stub record when the publisher withholds the
		// body.
		return nil, fmt.Errorf("PMID %q: full text not deposited: %w", pmid, ErrNotFound)
	}
	return &types.FullText{PMID: pmid, PMCID: "PMC" + pmcid, Sections: sections}, nil
}

// linkToPMC resolves a PMID to its PMC numeric ID via elink.
func (a *PubMedAdapter) linkToPMC(ctx context.Context, pmid string, cfg types.SearchConfig) (string, error) {
	params := url.Values{
		"dbfrom":  {"pubmed"},
		"db":      {"pmc"},
		"id":      {pmid},
		"retmode": {"json"},
	}
	body, err := a.get(ctx, "/elink.fcgi", params, cfg)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var lr elinkResponse
	if err := json.NewDecoder(body).Decode(&lr); err != nil {
		return "", fmt.Errorf("parsing elink response: %w: %v", ErrParse, err)
	}
	for _, set := range lr.LinkSets {
		for _, db := range set.LinkSetDBs {
			if db.LinkName != "pubmed_pmc" {
				continue
			}
			for _, link := range db.Links {
				if link.ID != "" {
					return link.ID, nil
				}
			}
		}
	}
	return "", fmt.Errorf("PMID %q: no PMC record: %w", pmid, ErrNotFound)
}

// parseJATSBody walks the article body and collects paragraphs grouped
// by section title. Nested sections are flattened in document order.
// Figures and tables are skipped.
func parseJATSBody(dec *xml.Decoder) ([]types.FullTextSection, error) {
	var (
		sections  []types.FullTextSection
		current   types.FullTextSection
		inBody    bool
		wantTitle bool
	)
	flush := func() {
		if current.Title != "" || len(current.Paragraphs) > 0 {
			sections = append(sections, current)
		}
		current = types.FullTextSection{}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "body":
				inBody = true
			case "sec":
				if inBody {
					flush()
					wantTitle = true
				}
			case "title":
				if inBody && wantTitle {
					text, err := collectElementText(dec)
					if err != nil {
						return nil, err
					}
					current.Title = text
					wantTitle = false
				}
			case "p":
				if inBody {
					text, err := collectElementText(dec)
					if err != nil {
						return nil, err
					}
					if text != "" {
						current.Paragraphs = append(current.Paragraphs, text)
					}
					wantTitle = false
				}
			case "fig", "table-wrap":
				if inBody {
					if err := dec.Skip(); err != nil {
						return nil, err
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "body" {
				flush()
				return sections, nil
			}
		}
	}
	flush()
	return sections, nil
}

// collectElementText reads until the current element closes and
// returns its character data, inline markup included.
func collectElementText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
	return collapseWhitespace(sb.String()), nil
}

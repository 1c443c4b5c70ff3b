// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/scholarly/pkg/types"
)

// FormatTable writes results as a human-readable table to w. Source
// failure warnings are printed even when the result list is empty so
// "no matches" and "sources unavailable" read differently.
func FormatTable(res *types.SearchResult, display types.DisplayPreferences, w io.Writer) {
	if len(res.Papers) == 0 {
		fmt.Fprintln(w, "No results found.")
		writeSourceWarnings(res, w)
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-24s  %-4s  %-5s  %s\n",
		"Rank", "Title", "Authors", "Year", "Cites", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 112))

	for i, p := range res.Papers {
		title := truncate(p.Title, 60)
		year := ""
		if p.Year > 0 {
			year = fmt.Sprintf("%d", p.Year)
		}
		cites := ""
		if p.Citations != nil {
			cites = fmt.Sprintf("%d", *p.Citations)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-24s  %-4s  %-5s  %s\n",
			i+1, title, formatAuthors(p.Authors, display.MaxAuthors), year, cites, p.Source)
		if display.ShowAbstract && p.Abstract != "" {
			fmt.Fprintf(w, "      %s\n", truncate(p.Abstract, 100))
		}
	}

	fmt.Fprintf(w, "\n%d results", len(res.Papers))
	if res.Dedup.DuplicatesRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", res.Dedup.DuplicatesRemoved)
	}
	if res.Cached {
		fmt.Fprint(w, " (cached)")
	}
	fmt.Fprintln(w)

	writeSourceWarnings(res, w)
}

func writeSourceWarnings(res *types.SearchResult, w io.Writer) {
	for _, msg := range res.Errors() {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}

// FormatJSON writes the full result, diagnostics included, as
// indented JSON to w.
func FormatJSON(res *types.SearchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// FormatPaper writes one paper's full metadata to w.
func FormatPaper(p *types.UnifiedPaper, w io.Writer) {
	fmt.Fprintf(w, "Title:    %s\n", p.Title)
	if len(p.Authors) > 0 {
		fmt.Fprintf(w, "Authors:  %s\n", strings.Join(p.Authors, ", "))
	}
	if p.Journal != "" {
		fmt.Fprintf(w, "Journal:  %s\n", p.Journal)
	}
	if p.Year > 0 {
		fmt.Fprintf(w, "Year:     %d\n", p.Year)
	}
	if p.Citations != nil {
		fmt.Fprintf(w, "Cited by: %d\n", *p.Citations)
	}
	if p.DOI != "" {
		fmt.Fprintf(w, "DOI:      %s\n", p.DOI)
	}
	if p.PMID != "" {
		fmt.Fprintf(w, "PMID:     %s\n", p.PMID)
	}
	if p.ArxivID != "" {
		fmt.Fprintf(w, "arXiv:    %s\n", p.ArxivID)
	}
	if p.URL != "" {
		fmt.Fprintf(w, "URL:      %s\n", p.URL)
	}
	fmt.Fprintf(w, "Source:   %s\n", p.Source)
	if p.Abstract != "" {
		fmt.Fprintf(w, "\n%s\n", p.Abstract)
	}
}

func formatAuthors(authors []string, max int) string {
	if max <= 0 {
		max = 1
	}
	switch {
	case len(authors) == 0:
		return ""
	case len(authors) <= max:
		return truncate(strings.Join(authors, ", "), 24)
	default:
		return truncate(authors[0], 17) + " et al."
	}
}

// truncate shortens s to at most n runes, ending in "..." when cut.
// Counting runes keeps multi-byte titles valid UTF-8.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

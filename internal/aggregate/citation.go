// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"fmt"
	"strings"

	"github.com/pdiddy/scholarly/pkg/types"
)

// CitationStyle names a citation output format.
type CitationStyle string

const (
	StyleBibTeX CitationStyle = "bibtex"
	StyleAPA    CitationStyle = "apa"
)

// FormatCitation renders a paper in the requested style.
func FormatCitation(p *types.UnifiedPaper, style CitationStyle) (string, error) {
	switch style {
	case StyleBibTeX:
		return formatBibTeX(p), nil
	case StyleAPA:
		return formatAPA(p), nil
	default:
		return "", fmt.Errorf("unknown citation style %q", style)
	}
}

// formatBibTeX renders an @article entry. The citation key is the
// first author's surname plus the year, falling back to the
// source-native identifier.
func formatBibTeX(p *types.UnifiedPaper) string {
	key := bibtexKey(p)

	var b strings.Builder
	fmt.Fprintf(&b, "@article{%s,\n", key)
	fmt.Fprintf(&b, "  title = {%s},\n", bibtexEscape(p.Title))
	if len(p.Authors) > 0 {
		fmt.Fprintf(&b, "  author = {%s},\n", bibtexEscape(strings.Join(p.Authors, " and ")))
	}
	if p.Journal != "" {
		fmt.Fprintf(&b, "  journal = {%s},\n", bibtexEscape(p.Journal))
	}
	if p.Year > 0 {
		fmt.Fprintf(&b, "  year = {%d},\n", p.Year)
	}
	if p.DOI != "" {
		fmt.Fprintf(&b, "  doi = {%s},\n", p.DOI)
	}
	if p.ArxivID != "" {
		fmt.Fprintf(&b, "  eprint = {%s},\n", p.ArxivID)
		fmt.Fprintf(&b, "  archivePrefix = {arXiv},\n")
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "  url = {%s},\n", p.URL)
	}
	b.WriteString("}\n")
	return b.String()
}

func bibtexKey(p *types.UnifiedPaper) string {
	base := p.ID()
	if len(p.Authors) > 0 {
		if s := surname(p.Authors[0]); s != "" {
			base = s
		}
	}
	key := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, base)
	if p.Year > 0 {
		key = fmt.Sprintf("%s%d", key, p.Year)
	}
	if key == "" {
		key = "paper"
	}
	return key
}

func bibtexEscape(s string) string {
	r := strings.NewReplacer("{", "\\{", "}", "\\}", "&", "\\&", "%", "\\%", "$", "\\$", "#", "\\#", "_", "\\_")
	return r.Replace(s)
}

// formatAPA renders a single-line APA-style reference.
func formatAPA(p *types.UnifiedPaper) string {
	var b strings.Builder

	if len(p.Authors) > 0 {
		b.WriteString(apaAuthors(p.Authors))
		b.WriteString(" ")
	}
	if p.Year > 0 {
		fmt.Fprintf(&b, "(%d). ", p.Year)
	}
	b.WriteString(strings.TrimRight(p.Title, "."))
	b.WriteString(".")
	if p.Journal != "" {
		fmt.Fprintf(&b, " %s.", p.Journal)
	}
	if p.DOI != "" {
		fmt.Fprintf(&b, " https://doi.org/%s", p.DOI)
	} else if p.URL != "" {
		fmt.Fprintf(&b, " %s", p.URL)
	}
	return b.String()
}

// apaAuthors renders "Surname, F., Surname, F., & Surname, F." with
// an et-al cutoff at 20 authors per the 7th-edition rule, simplified
// to a plain ellipsis.
func apaAuthors(authors []string) string {
	const cutoff = 20
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, apaName(a))
	}
	if len(names) > cutoff {
		names = append(names[:cutoff-1], "...", names[len(names)-1])
	}
	switch len(names) {
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", & " + names[len(names)-1]
	}
}

// apaName converts "First Middle Last" into "Last, F. M.".
func apaName(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return name
	}
	last := fields[len(fields)-1]
	var initials []string
	for _, f := range fields[:len(fields)-1] {
		r := []rune(f)
		initials = append(initials, string(r[0])+".")
	}
	return last + ", " + strings.Join(initials, " ")
}

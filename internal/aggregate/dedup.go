// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"strings"
	"unicode"

	"github.com/pdiddy/scholarly/pkg/types"
)

// Deduplicate collapses papers that describe the same work across
// sources. Two papers are duplicates when their normalized titles
// match exactly, or when the titles are similar beyond the configured
// threshold and (if required) the author surname sets overlap. The
// representative of each group is the paper from the
// highest-priority source, with confidence and abstract length as
// tie-breakers; missing fields on the representative are filled from
// the papers it absorbed. Relative order of representatives follows
// their first appearance in the input.
func Deduplicate(papers []types.UnifiedPaper, cfg types.DedupConfig) []types.UnifiedPaper {
	if len(papers) < 2 {
		return papers
	}

	type group struct {
		rep    types.UnifiedPaper
		title  string
		tokens map[string]bool
	}
	var groups []*group

	for _, p := range papers {
		title := normalizeTitle(p.Title)
		tokens := titleTokens(title)

		var match *group
		for _, g := range groups {
			if g.title == title {
				match = g
				break
			}
			if jaccard(g.tokens, tokens) < cfg.TitleSimilarity {
				continue
			}
			if cfg.RequireAuthorOverlap && !surnamesOverlap(g.rep.Authors, p.Authors) {
				continue
			}
			match = g
			break
		}
		if match == nil {
			groups = append(groups, &group{rep: p, title: title, tokens: tokens})
			continue
		}
		match.rep = mergePair(match.rep, p)
	}

	out := make([]types.UnifiedPaper, len(groups))
	for i, g := range groups {
		out[i] = g.rep
	}
	return out
}

// mergePair picks the representative of two duplicate papers and
// backfills its missing fields from the loser.
func mergePair(a, b types.UnifiedPaper) types.UnifiedPaper {
	win, lose := a, b
	if betterRepresentative(b, a) {
		win, lose = b, a
	}
	if win.Abstract == "" {
		win.Abstract = lose.Abstract
	}
	if win.DOI == "" {
		win.DOI = lose.DOI
	}
	if win.PMID == "" {
		win.PMID = lose.PMID
	}
	if win.ArxivID == "" {
		win.ArxivID = lose.ArxivID
	}
	if win.Journal == "" {
		win.Journal = lose.Journal
	}
	if win.Year == 0 {
		win.Year = lose.Year
	}
	if win.Citations == nil {
		win.Citations = lose.Citations
	}
	if len(win.Authors) == 0 {
		win.Authors = lose.Authors
	}
	if win.URL == "" {
		win.URL = lose.URL
	}
	return win
}

// betterRepresentative reports whether a should represent the group
// over b: lower priority number wins, then higher confidence, then
// longer abstract.
func betterRepresentative(a, b types.UnifiedPaper) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return len(a.Abstract) > len(b.Abstract)
}

// normalizeTitle lowercases, strips punctuation and collapses
// whitespace so that cosmetic variation between sources does not
// defeat matching.
func normalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func titleTokens(normalized string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(normalized) {
		tokens[w] = true
	}
	return tokens
}

// jaccard computes |a∩b| / |a∪b| over token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// surnamesOverlap reports whether the two author lists share at least
// one surname. Empty lists overlap trivially: author data from
// scraped sources is often missing, and absence should not block a
// strong title match.
func surnamesOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	set := make(map[string]bool, len(a))
	for _, name := range a {
		set[surname(name)] = true
	}
	for _, name := range b {
		if set[surname(name)] {
			return true
		}
	}
	return false
}

// surname extracts the last word of a name, lowercased.
func surname(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

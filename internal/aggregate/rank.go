// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"sort"

	"github.com/pdiddy/scholarly/pkg/types"
)

// Rank orders papers in place by the given key. All sorts are stable,
// so papers that compare equal keep their incoming order and ranking
// an already-ranked slice is a no-op.
func Rank(papers []types.UnifiedPaper, key types.SortKey) {
	switch key {
	case types.SortDate:
		sort.SliceStable(papers, func(i, j int) bool {
			// Unknown years sort after every known year.
			yi, yj := papers[i].Year, papers[j].Year
			if yi == 0 {
				return false
			}
			if yj == 0 {
				return true
			}
			return yi > yj
		})
	case types.SortCitations:
		sort.SliceStable(papers, func(i, j int) bool {
			return papers[i].CitationCount() > papers[j].CitationCount()
		})
	default:
		// Relevance: sources return results in their own relevance
		// order, so rank by source priority over the priority-ordered
		// concatenation.
		sort.SliceStable(papers, func(i, j int) bool {
			return papers[i].Priority < papers[j].Priority
		})
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"testing"

	"github.com/pdiddy/scholarly/pkg/types"
)

func TestRankByCitations(t *testing.T) {
	papers := []types.UnifiedPaper{
		{Title: "Five", Citations: intp(5)},
		{Title: "Unknown"},
		{Title: "Twenty", Citations: intp(20)},
	}
	Rank(papers, types.SortCitations)

	want := []string{"Twenty", "Five", "Unknown"}
	for i, w := range want {
		if papers[i].Title != w {
			t.Errorf("papers[%d] = %q, want %q", i, papers[i].Title, w)
		}
	}
}

func TestRankByDate(t *testing.T) {
	papers := []types.UnifiedPaper{
		{Title: "Old", Year: 2015},
		{Title: "NoYear"},
		{Title: "New", Year: 2023},
		{Title: "Mid", Year: 2019},
	}
	Rank(papers, types.SortDate)

	want := []string{"New", "Mid", "Old", "NoYear"}
	for i, w := range want {
		if papers[i].Title != w {
			t.Errorf("papers[%d] = %q, want %q", i, papers[i].Title, w)
		}
	}
}

func TestRankByDateIdempotent(t *testing.T) {
	papers := []types.UnifiedPaper{
		{Title: "A", Year: 2020},
		{Title: "B", Year: 2020},
		{Title: "C", Year: 2021},
		{Title: "D"},
	}
	Rank(papers, types.SortDate)
	first := make([]string, len(papers))
	for i, p := range papers {
		first[i] = p.Title
	}

	Rank(papers, types.SortDate)
	for i, p := range papers {
		if p.Title != first[i] {
			t.Fatalf("re-ranking changed order at %d: %q vs %q", i, p.Title, first[i])
		}
	}
}

func TestRankByRelevanceKeepsSourceOrder(t *testing.T) {
	papers := []types.UnifiedPaper{
		{Title: "P1", Priority: 1},
		{Title: "P2", Priority: 1},
		{Title: "A1", Priority: 2},
		{Title: "A2", Priority: 2},
	}
	Rank(papers, types.SortRelevance)

	want := []string{"P1", "P2", "A1", "A2"}
	for i, w := range want {
		if papers[i].Title != w {
			t.Errorf("papers[%d] = %q, want %q", i, papers[i].Title, w)
		}
	}
}

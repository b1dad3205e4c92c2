package nav

import (
	"slices"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Filter returns the indices of labels matching query, best first. An empty
// query keeps every label in its original order.
func Filter(query string, labels []string) []int {
	if query == "" {
		out := make([]int, len(labels))
		for i := range labels {
			out[i] = i
		}
		return out
	}
	ranks := fuzzy.RankFindNormalizedFold(query, labels)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		return a.OriginalIndex - b.OriginalIndex
	})
	out := make([]int, len(ranks))
	for i, r := range ranks {
		out[i] = r.OriginalIndex
	}
	return out
}

// Refilter recomputes the switcher matches after the room list changed.
func (s *State) Refilter(labels []string) {
	sw := s.Switcher()
	if sw == nil {
		return
	}
	sw.Matches = Filter(sw.Query.String(), labels)
	sw.Selected = clamp(sw.Selected, len(sw.Matches))
}

package agents

import "sort"

// sortByIdeaIndex stable-sorts batch results by idea_index ascending,
// satisfying spec.md's ordering policy for every batch variant (P2).
func sortByIdeaIndex[T any](items []T, indexOf func(T) int) {
	sort.SliceStable(items, func(i, j int) bool {
		return indexOf(items[i]) < indexOf(items[j])
	})
}

// Package novelty deduplicates generated ideas by textual similarity
// before they enter the evaluation stage.
package novelty

import "strings"

// DefaultThreshold matches spec.md's default similarity threshold.
const DefaultThreshold = 0.8

// Filter removes items from texts that are near-duplicates (similarity >=
// threshold) of an earlier item in the slice, keeping the first
// occurrence (deterministic tie-breaking). It returns the indices of the
// texts that survive, in their original order.
func Filter(texts []string, threshold float64) []int {
	kept := make([]int, 0, len(texts))
	keptTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		duplicate := false
		for _, existing := range keptTexts {
			if jaccardSimilarity(text, existing) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, i)
			keptTexts = append(keptTexts, text)
		}
	}
	return kept
}

// jaccardSimilarity computes token-set Jaccard similarity between two
// strings: |A ∩ B| / |A ∪ B| over lowercased whitespace-split tokens.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	tokens := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

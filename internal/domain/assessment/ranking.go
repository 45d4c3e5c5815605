package assessment

import "sort"

// TopRanked is how many classes the result view shows.
const TopRanked = 5

// Rank converts probabilities into percentages ordered by descending value.
// Ties keep insertion order. limit <= 0 means no truncation.
func Rank(p Probabilities, limit int) []RankedProbability {
	out := make([]RankedProbability, 0, p.Len())
	for _, label := range p.labels {
		out = append(out, RankedProbability{
			Label:      label,
			Percentage: p.values[label] * 100,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percentage > out[j].Percentage
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

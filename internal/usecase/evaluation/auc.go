package evaluation

import (
	"cmp"
	"slices"
)

// Sample is one scored pair with its ground-truth label.
type Sample struct {
	Positive bool
	Score    float64
}

// AUC returns the area under the ROC curve via the Mann-Whitney U statistic:
// the probability that a random positive outscores a random negative, ties
// counting one half. defined is false unless both classes are present.
func AUC(samples []Sample) (auc float64, defined bool) {
	var positives, negatives int
	for _, s := range samples {
		if s.Positive {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0, false
	}

	sorted := slices.Clone(samples)
	slices.SortFunc(sorted, func(a, b Sample) int { return cmp.Compare(a.Score, b.Score) })

	// Sum of 1-based ranks of positives, tied groups sharing their average rank.
	var rankSum float64
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].Score == sorted[start].Score {
			end++
		}
		avgRank := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			if sorted[k].Positive {
				rankSum += avgRank
			}
		}
		start = end
	}

	p, n := float64(positives), float64(negatives)
	u := rankSum - p*(p+1)/2
	return u / (p * n), true
}

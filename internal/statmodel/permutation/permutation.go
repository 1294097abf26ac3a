// Package permutation implements a non-parametric permutation test that
// confirms whether the most recent sub-window of intervals has a
// significantly lower mean than the intervals preceding it. It is the
// Alert Filter's Zone 2 tie-breaker, run only after the HMM predicts Burst.
package permutation

import "math/rand"

const (
	Alpha         = 0.05
	NPermutations = 1000
	minSample     = 5
)

// HasBurstEmerged returns true when the tail of intervals (the most recent
// 25%, at least minSample long) has a mean significantly lower than the
// rest, per a 1000-shuffle permutation test at alpha=0.05. rng must be
// supplied by the caller so the test is deterministic when seeded; pass
// rand.New(rand.NewSource(seed)) for reproducibility.
func HasBurstEmerged(intervals []float64, rng *rand.Rand) bool {
	return HasBurstEmergedWithParams(intervals, rng, Alpha, NPermutations)
}

// HasBurstEmergedWithParams is HasBurstEmerged with configurable alpha and
// permutation count.
func HasBurstEmergedWithParams(intervals []float64, rng *rand.Rand, alpha float64, nPermutations int) bool {
	n := len(intervals)
	recentWindow := maxInt(minSample, int(0.25*float64(n)))
	if n < recentWindow+minSample {
		return false
	}

	historical := intervals[:n-recentWindow]
	recent := intervals[n-recentWindow:]

	meanRecent := mean(recent)
	meanHistorical := mean(historical)
	if meanRecent >= meanHistorical {
		return false
	}

	observed := meanRecent - meanHistorical

	pooled := make([]float64, 0, n)
	pooled = append(pooled, historical...)
	pooled = append(pooled, recent...)

	count := 0
	shuffled := make([]float64, n)
	for i := 0; i < nPermutations; i++ {
		copy(shuffled, pooled)
		rng.Shuffle(n, func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		permRecent := shuffled[n-recentWindow:]
		permHistorical := shuffled[:n-recentWindow]
		d := mean(permRecent) - mean(permHistorical)
		if d <= observed {
			count++
		}
	}

	pValue := float64(count) / float64(nPermutations)
	return pValue < alpha
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

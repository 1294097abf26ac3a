// Package mad implements the Median Absolute Deviation robust outlier test
// used as the Alert Filter's first-pass, high-priority burst check.
package mad

import "sort"

// ZThreshold is the modified z-score cutoff below which an interval is
// flagged as anomalously short (a burst).
const ZThreshold = 3.5

// IsBurst reports whether newInterval is anomalously short relative to
// history, using a modified z-score on the median absolute deviation. With
// fewer than two historical samples it falls back to flagging only very
// fast bursts (< 0.1 hour). A zero MAD (degenerate, all-identical history)
// falls back to a strict less-than comparison against the median.
func IsBurst(newInterval float64, history []float64) bool {
	return IsBurstWithThreshold(newInterval, history, ZThreshold)
}

// IsBurstWithThreshold is IsBurst with a configurable z-score threshold.
func IsBurstWithThreshold(newInterval float64, history []float64, zThreshold float64) bool {
	if len(history) < 2 {
		return newInterval < 0.1
	}

	med := median(history)
	deviations := make([]float64, len(history))
	for i, x := range history {
		deviations[i] = abs(x - med)
	}
	madVal := median(deviations)

	if madVal == 0 {
		return newInterval < med
	}

	z := 0.6745 * (newInterval - med) / madVal
	return z < -zThreshold
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

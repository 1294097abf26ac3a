// Package hmm implements a 3-state (Normal/Burst/Silent) hidden Markov
// model over inter-event intervals, trained online per invocation with
// Baum-Welch and read out with Viterbi. Nothing here is persisted across
// invocations: the model trains fresh every time from the history window
// it is handed.
package hmm

import "math"

// States.
const (
	Normal = iota
	Burst
	Silent
	numStates = 3
)

const (
	maxIterations       = 10
	convergenceTol      = 1e-4
	epsilon             = 1e-9
	transitionFloor     = 1e-9
	viterbiBaselineSize = 20
)

// Model holds learned HMM parameters: transition log-probabilities and
// per-state exponential rates.
type Model struct {
	logTrans [numStates][numStates]float64
	rate     [numStates]float64
}

// Train fits a Model to intervals (inter-event gaps, in hours) using
// Baum-Welch in log space, for at most 10 iterations or until the L1 change
// in parameters falls below 1e-4. intervals must be non-empty; callers
// (the Alert Filter) gate this behind a minimum sample count.
func Train(intervals []float64) *Model {
	m := initialModel(intervals)
	if len(intervals) == 0 {
		return m
	}

	for iter := 0; iter < maxIterations; iter++ {
		logEmit := emissionLogProbs(intervals, m)
		logAlpha := forward(logEmit, m)
		logBeta := backward(logEmit, m)
		logGamma, logXi := eStep(logEmit, logAlpha, logBeta, m)

		next := mStep(intervals, logGamma, logXi)
		delta := l1Distance(m, next)
		m = next
		if delta < convergenceTol {
			break
		}
	}
	return m
}

// PredictFinalState runs Viterbi over the last viterbiBaselineSize
// intervals of training data to establish a baseline, then takes one more
// Viterbi step on newInterval, and returns the most probable resulting
// state.
func PredictFinalState(m *Model, trainingIntervals []float64, newInterval float64) int {
	baseline := trainingIntervals
	if len(baseline) > viterbiBaselineSize {
		baseline = baseline[len(baseline)-viterbiBaselineSize:]
	}

	var logProb [numStates]float64
	if len(baseline) == 0 {
		for s := 0; s < numStates; s++ {
			logProb[s] = logStart(s)
		}
	} else {
		for s := 0; s < numStates; s++ {
			logProb[s] = logStart(s) + emissionLogProb(baseline[0], s, m)
		}
		for t := 1; t < len(baseline); t++ {
			logProb = viterbiStep(logProb, baseline[t], m)
		}
	}

	logProb = viterbiStep(logProb, newInterval, m)
	return argmax(logProb)
}

func viterbiStep(prevLogProb [numStates]float64, obs float64, m *Model) [numStates]float64 {
	var next [numStates]float64
	for s := 0; s < numStates; s++ {
		best := math.Inf(-1)
		for prev := 0; prev < numStates; prev++ {
			cand := prevLogProb[prev] + m.logTrans[prev][s]
			if cand > best {
				best = cand
			}
		}
		next[s] = best + emissionLogProb(obs, s, m)
	}
	return next
}

func logStart(s int) float64 {
	// Uniform start distribution: no prior favors any state before the
	// first observation.
	return -math.Log(numStates)
}

func argmax(xs [numStates]float64) int {
	best := 0
	for i := 1; i < numStates; i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

func emissionLogProb(x float64, state int, m *Model) float64 {
	lambda := m.rate[state]
	if lambda <= 0 {
		lambda = epsilon
	}
	return math.Log(lambda) - lambda*x
}

func emissionLogProbs(intervals []float64, m *Model) [][numStates]float64 {
	out := make([][numStates]float64, len(intervals))
	for t, x := range intervals {
		for s := 0; s < numStates; s++ {
			out[t][s] = emissionLogProb(x, s, m)
		}
	}
	return out
}

func initialModel(intervals []float64) *Model {
	m := &Model{}
	m.logTrans = [numStates][numStates]float64{
		{math.Log(0.90), math.Log(0.08), math.Log(0.02)},
		{math.Log(0.20), math.Log(0.79), math.Log(0.01)},
		{math.Log(0.30), math.Log(0.01), math.Log(0.69)},
	}

	meanNormal := 24.0
	if len(intervals) > 0 {
		meanNormal = mean(intervals)
		if meanNormal <= 0 {
			meanNormal = 24.0
		}
	}
	meanBurst := 0.05 * meanNormal
	meanSilent := 10.0 * meanNormal

	m.rate[Normal] = safeRate(meanNormal)
	m.rate[Burst] = safeRate(meanBurst)
	m.rate[Silent] = safeRate(meanSilent)
	return m
}

func safeRate(mu float64) float64 {
	if mu < epsilon {
		mu = epsilon
	}
	return 1.0 / mu
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

// forward computes log alpha[t][s] with a uniform start distribution.
func forward(logEmit [][numStates]float64, m *Model) [][numStates]float64 {
	n := len(logEmit)
	alpha := make([][numStates]float64, n)
	if n == 0 {
		return alpha
	}
	for s := 0; s < numStates; s++ {
		alpha[0][s] = logStart(s) + logEmit[0][s]
	}
	for t := 1; t < n; t++ {
		for s := 0; s < numStates; s++ {
			terms := [numStates]float64{}
			for prev := 0; prev < numStates; prev++ {
				terms[prev] = alpha[t-1][prev] + m.logTrans[prev][s]
			}
			alpha[t][s] = logSumExp(terms[:]) + logEmit[t][s]
		}
	}
	return alpha
}

// backward computes log beta[t][s].
func backward(logEmit [][numStates]float64, m *Model) [][numStates]float64 {
	n := len(logEmit)
	beta := make([][numStates]float64, n)
	if n == 0 {
		return beta
	}
	for s := 0; s < numStates; s++ {
		beta[n-1][s] = 0
	}
	for t := n - 2; t >= 0; t-- {
		for s := 0; s < numStates; s++ {
			terms := [numStates]float64{}
			for next := 0; next < numStates; next++ {
				terms[next] = m.logTrans[s][next] + logEmit[t+1][next] + beta[t+1][next]
			}
			beta[t][s] = logSumExp(terms[:])
		}
	}
	return beta
}

// eStep computes log gamma[t][s] (posterior state occupancy) and
// log xi[t][i][j] (posterior transition occupancy).
func eStep(logEmit, logAlpha, logBeta [][numStates]float64, m *Model) ([][numStates]float64, [][numStates][numStates]float64) {
	n := len(logEmit)
	gamma := make([][numStates]float64, n)
	xi := make([][numStates][numStates]float64, maxInt(n-1, 0))

	for t := 0; t < n; t++ {
		terms := [numStates]float64{}
		for s := 0; s < numStates; s++ {
			terms[s] = logAlpha[t][s] + logBeta[t][s]
		}
		norm := logSumExp(terms[:])
		for s := 0; s < numStates; s++ {
			gamma[t][s] = terms[s] - norm
		}
	}

	for t := 0; t < n-1; t++ {
		var terms []float64
		raw := [numStates][numStates]float64{}
		for i := 0; i < numStates; i++ {
			for j := 0; j < numStates; j++ {
				v := logAlpha[t][i] + m.logTrans[i][j] + logEmit[t+1][j] + logBeta[t+1][j]
				raw[i][j] = v
				terms = append(terms, v)
			}
		}
		norm := logSumExp(terms)
		for i := 0; i < numStates; i++ {
			for j := 0; j < numStates; j++ {
				xi[t][i][j] = raw[i][j] - norm
			}
		}
	}

	return gamma, xi
}

// mStep re-estimates transitions and per-state rates from posteriors.
func mStep(intervals []float64, logGamma [][numStates]float64, logXi [][numStates][numStates]float64) *Model {
	next := &Model{}

	for i := 0; i < numStates; i++ {
		denomTerms := make([]float64, 0, len(logXi))
		for t := range logXi {
			row := [numStates]float64{logXi[t][i][0], logXi[t][i][1], logXi[t][i][2]}
			denomTerms = append(denomTerms, logSumExp(row[:]))
		}
		denom := math.Inf(-1)
		if len(denomTerms) > 0 {
			denom = logSumExp(denomTerms)
		}
		for j := 0; j < numStates; j++ {
			numTerms := make([]float64, 0, len(logXi))
			for t := range logXi {
				numTerms = append(numTerms, logXi[t][i][j])
			}
			var lp float64
			if len(numTerms) == 0 || math.IsInf(denom, -1) {
				lp = math.Log(transitionFloor)
			} else {
				lp = logSumExp(numTerms) - denom
			}
			next.logTrans[i][j] = floorLogProb(lp)
		}
		next.logTrans[i] = normalizeLogRow(next.logTrans[i])
	}

	for s := 0; s < numStates; s++ {
		var gammaSum, gammaWeightedSum float64
		for t, x := range intervals {
			g := math.Exp(logGamma[t][s])
			gammaSum += g
			gammaWeightedSum += g * x
		}
		if gammaWeightedSum < epsilon {
			next.rate[s] = epsilon
		} else {
			next.rate[s] = gammaSum / gammaWeightedSum
		}
	}

	return next
}

func floorLogProb(lp float64) float64 {
	floor := math.Log(transitionFloor)
	if lp < floor {
		return floor
	}
	return lp
}

// normalizeLogRow rescales a row of log-probabilities so they sum to 1 in
// probability space, after flooring, to keep the transition matrix valid.
func normalizeLogRow(row [numStates]float64) [numStates]float64 {
	norm := logSumExp(row[:])
	var out [numStates]float64
	for i := range row {
		out[i] = row[i] - norm
	}
	return out
}

func l1Distance(a, b *Model) float64 {
	var sum float64
	for i := 0; i < numStates; i++ {
		sum += math.Abs(a.rate[i] - b.rate[i])
		for j := 0; j < numStates; j++ {
			sum += math.Abs(math.Exp(a.logTrans[i][j]) - math.Exp(b.logTrans[i][j]))
		}
	}
	return sum
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// logSumExp computes log(sum(exp(xs))) in a numerically stable way,
// ignoring -Inf entries.
func logSumExp(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

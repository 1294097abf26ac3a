// Package filter orchestrates the tiered statistical alert decision (MAD,
// HMM, permutation test) against a per-signature history window, and
// fans per-signature work out over a bounded worker pool.
package filter

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/logdigest/internal/statmodel/hmm"
	"github.com/kiranshivaraju/logdigest/internal/statmodel/mad"
	"github.com/kiranshivaraju/logdigest/internal/statmodel/permutation"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Config holds the tunables for the Alert Filter and its underlying
// models. Zero value is NOT valid; use DefaultConfig as a
// starting point.
type Config struct {
	HMMTrustThreshold      int
	HMMConfidenceThreshold int
	MADZThreshold          float64
	PermutationAlpha       float64
	PermutationN           int
	// Workers bounds the size of the per-signature worker pool. <= 0 means
	// unbounded (one goroutine per signature).
	Workers int
}

// DefaultConfig returns the documented production defaults.
func DefaultConfig() Config {
	return Config{
		HMMTrustThreshold:      20,
		HMMConfidenceThreshold: 40,
		MADZThreshold:          mad.ZThreshold,
		PermutationAlpha:       permutation.Alpha,
		PermutationN:           permutation.NPermutations,
		Workers:                8,
	}
}

// Decide runs the tiered M/H/T decision for one signature. historical may
// be empty; current must be non-empty. Both slices need not be sorted.
func Decide(historical, current []time.Time, cfg Config, rng *rand.Rand) models.AlertDecision {
	all := mergeSorted(historical, current)
	n := len(all)
	if n < 2 {
		return models.AlertDecision{Alert: true, Reason: "first event sequence"}
	}

	intervals := intervalsInHours(all)
	newInterval := intervals[len(intervals)-1]
	historyForModel := intervals[:len(intervals)-1]

	if mad.IsBurstWithThreshold(newInterval, historyForModel, cfg.MADZThreshold) {
		return models.AlertDecision{Alert: true, Reason: "MAD burst anomaly"}
	}

	switch {
	case len(intervals) < cfg.HMMTrustThreshold:
		return models.AlertDecision{Alert: false, Reason: "Low data, MAD negative"}

	case len(intervals) < cfg.HMMConfidenceThreshold:
		m := hmm.Train(historyForModel)
		state := hmm.PredictFinalState(m, historyForModel, newInterval)
		if state != hmm.Burst {
			return models.AlertDecision{Alert: false, Reason: "HMM did not predict burst"}
		}
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		if permutation.HasBurstEmergedWithParams(intervals, rng, cfg.PermutationAlpha, cfg.PermutationN) {
			return models.AlertDecision{Alert: true, Reason: "HMM burst confirmed by permutation test"}
		}
		return models.AlertDecision{Alert: false, Reason: "HMM burst not confirmed by permutation test"}

	default:
		m := hmm.Train(historyForModel)
		state := hmm.PredictFinalState(m, historyForModel, newInterval)
		if state == hmm.Burst {
			return models.AlertDecision{Alert: true, Reason: "HMM predicted burst"}
		}
		return models.AlertDecision{Alert: false, Reason: "HMM did not predict burst"}
	}
}

func mergeSorted(a, b []time.Time) []time.Time {
	all := make([]time.Time, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })
	return all
}

func intervalsInHours(ts []time.Time) []float64 {
	out := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		out = append(out, ts[i].Sub(ts[i-1]).Hours())
	}
	return out
}

// clusterDecision pairs a cluster with its computed decision, preserving
// the cluster's index for stable tie-breaking.
type clusterDecision struct {
	cluster  models.Cluster
	decision models.AlertDecision
	index    int
}

// Apply decides every cluster against its signature's history, using a
// worker pool bounded by cfg.Workers, and returns only the alerting
// clusters sorted by level_rank*count descending. Each returned cluster
// is stripped to its published payload: signature, count, and
// representative_log only. level_rank and per-event timestamps do not
// leave Apply. seedFn supplies a per-signature deterministic RNG seed;
// pass nil to seed from wall-clock time (non-deterministic, fine outside
// tests).
func Apply(ctx context.Context, clusters []models.Cluster, history map[string][]time.Time, cfg Config, seedFn func(signature string) int64) ([]models.Cluster, error) {
	results := make([]clusterDecision, len(clusters))

	var g errgroup.Group
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}

	for i, c := range clusters {
		i, c := i, c
		g.Go(func() error {
			// A deadline mid-run defaults unprocessed signatures to
			// alert=false rather than aborting the whole batch.
			if ctx.Err() != nil {
				results[i] = clusterDecision{cluster: c, decision: models.AlertDecision{Reason: "deadline exceeded, skipped"}, index: i}
				return nil
			}

			var seed int64
			if seedFn != nil {
				seed = seedFn(c.Signature)
			} else {
				seed = time.Now().UnixNano()
			}
			rng := rand.New(rand.NewSource(seed))

			decision := Decide(history[c.Signature], c.Timestamps, cfg, rng)
			results[i] = clusterDecision{cluster: c, decision: decision, index: i}
			return nil
		})
	}

	_ = g.Wait()

	firing := make([]clusterDecision, 0, len(results))
	for _, r := range results {
		if r.decision.Alert {
			firing = append(firing, r)
		}
	}

	// Ranking needs level_rank, which the published payload below does
	// not carry, so the sort runs on the full cluster before it is
	// stripped.
	sort.SliceStable(firing, func(i, j int) bool {
		scoreI := firing[i].cluster.LevelRank * firing[i].cluster.Count
		scoreJ := firing[j].cluster.LevelRank * firing[j].cluster.Count
		return scoreI > scoreJ
	})

	alerting := make([]models.Cluster, 0, len(firing))
	for _, r := range firing {
		alerting = append(alerting, models.Cluster{
			Signature:         r.cluster.Signature,
			Count:             r.cluster.Count,
			RepresentativeLog: r.cluster.RepresentativeLog,
		})
	}

	return alerting, nil
}

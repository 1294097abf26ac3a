// Package clusterer groups parsed log events by signature within a batch.
// It is stateless per call: the same ordered line sequence always yields
// the same ordered cluster list.
package clusterer

import (
	"sort"

	"github.com/kiranshivaraju/logdigest/internal/parser"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Cluster parses every line with minSeverity as the floor, groups the
// resulting events by signature, and returns clusters sorted by count
// descending. Ties preserve first-seen order. Never returns nil, even
// for empty input.
func Cluster(lines []string, minSeverity int) []models.Cluster {
	order := make([]string, 0, len(lines))
	byOrder := make(map[string]int)
	index := make(map[string]*models.Cluster)

	for _, line := range lines {
		ev, ok := parser.Parse(line, minSeverity)
		if !ok {
			continue
		}

		c, exists := index[ev.Signature]
		if !exists {
			c = &models.Cluster{
				Signature:         ev.Signature,
				LevelRank:         ev.LevelRank,
				RepresentativeLog: ev.Raw,
			}
			index[ev.Signature] = c
			byOrder[ev.Signature] = len(order)
			order = append(order, ev.Signature)
		}

		c.Count++
		c.Timestamps = append(c.Timestamps, ev.Timestamp)
	}

	clusters := make([]models.Cluster, 0, len(order))
	for _, sig := range order {
		clusters = append(clusters, *index[sig])
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Count > clusters[j].Count
	})

	return clusters
}

// SplitIntoBatches divides lines into sequential sub-batches of at most
// batchSize lines each, preserving order. A non-positive batchSize returns
// the whole input as a single batch.
func SplitIntoBatches(lines []string, batchSize int) [][]string {
	if batchSize <= 0 || len(lines) <= batchSize {
		return [][]string{lines}
	}
	var batches [][]string
	for start := 0; start < len(lines); start += batchSize {
		end := start + batchSize
		if end > len(lines) {
			end = len(lines)
		}
		batches = append(batches, lines[start:end])
	}
	return batches
}

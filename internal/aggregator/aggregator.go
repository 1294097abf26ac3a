// Package aggregator folds multiple per-batch AnalysisResults into one
// consolidated Digest: merge clusters by signature, sum counts, and
// synthesize a single summary.
package aggregator

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Synthesizer produces one combined summary from several per-batch
// summaries. It is a narrow view of the external Summarizer collaborator
// (see internal/summarizer) so the Aggregator never depends on how a
// summary was produced.
type Synthesizer interface {
	Synthesize(ctx context.Context, summaries []string) (string, error)
}

// Aggregate merges results across a digest window: first occurrence of a
// signature is kept verbatim, later occurrences only add their count.
// Clusters are sorted by count descending. Synthesizer may be nil; on a
// nil synthesizer or a failed Synthesize call, summaries are concatenated
// with a separator instead.
func Aggregate(ctx context.Context, results []models.AnalysisResult, synth Synthesizer) models.Digest {
	byLogicalSignature := make(map[string]*models.Cluster)
	var order []string

	var totalLogs int
	var summaries []string
	var ids []string

	for _, r := range results {
		totalLogs += r.TotalLogsProcessed
		if r.Summary != "" {
			summaries = append(summaries, r.Summary)
		}
		if r.AnalysisID != "" {
			ids = append(ids, r.AnalysisID)
		}

		for _, c := range r.Clusters {
			existing, ok := byLogicalSignature[c.Signature]
			if !ok {
				cc := c
				byLogicalSignature[c.Signature] = &cc
				order = append(order, c.Signature)
				continue
			}
			existing.Count += c.Count
		}
	}

	clusters := make([]models.Cluster, 0, len(order))
	for _, sig := range order {
		clusters = append(clusters, *byLogicalSignature[sig])
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Count > clusters[j].Count
	})

	summary := fallbackJoin(summaries)
	if synth != nil && len(summaries) > 0 {
		if combined, err := synth.Synthesize(ctx, summaries); err == nil {
			summary = combined
		}
	}

	return models.Digest{
		AnalysisID:         "consolidated-digest" + strings.Join(ids, ""),
		Summary:            summary,
		Clusters:           clusters,
		TotalLogsProcessed: totalLogs,
		TotalClustersFound: len(clusters),
		ProcessedAt:        time.Now().UTC(),
	}
}

func fallbackJoin(summaries []string) string {
	return strings.Join(summaries, "\n\n---\n\n")
}

// DecodeBatch decodes zero or more AnalysisResults from a raw transport
// payload. It tolerates three shapes: a bare AnalysisResult, an SNS/SQS-style
// envelope with a top-level "Message" string holding the nested JSON, or a
// JSON array of either of the above. Records that fail to decode are
// skipped rather than failing the whole batch.
func DecodeBatch(raw []byte) []models.AnalysisResult {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil
		}
		var out []models.AnalysisResult
		for _, rec := range records {
			if r, ok := decodeOne(rec); ok {
				out = append(out, r)
			}
		}
		return out
	}

	if r, ok := decodeOne(raw); ok {
		return []models.AnalysisResult{r}
	}
	return nil
}

func decodeOne(raw json.RawMessage) (models.AnalysisResult, bool) {
	var envelope struct {
		Message *string `json:"Message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != nil {
		raw = json.RawMessage(*envelope.Message)
	}

	var r models.AnalysisResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.AnalysisResult{}, false
	}
	return r, true
}

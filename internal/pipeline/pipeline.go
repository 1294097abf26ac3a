// Package pipeline drives Parse→Cluster→Filter per raw batch, splitting
// oversized batches per BATCH_SIZE, reading and writing the tenant-scoped
// HistoryWindow, summarizing, and publishing the result. It is the glue
// that wires the three in-process stages to the external collaborators.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/logdigest/internal/alertsink"
	"github.com/kiranshivaraju/logdigest/internal/clusterer"
	"github.com/kiranshivaraju/logdigest/internal/filter"
	"github.com/kiranshivaraju/logdigest/internal/history"
	"github.com/kiranshivaraju/logdigest/internal/source"
	"github.com/kiranshivaraju/logdigest/internal/summarizer"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Summarizer is the narrow view of a summarizer.SafeSummarizer the
// pipeline needs: turning one batch's clusters into a prose summary. A
// SafeSummarizer never returns an error, so the pipeline never has to
// reason about SummarizerFailed itself.
type Summarizer interface {
	Summarize(ctx context.Context, clusters []models.Cluster) (string, error)
}

// Config holds the pipeline-level tunables layered on top of the Parser
// and Filter configs.
type Config struct {
	MinSeverity       int
	BatchSize         int
	HistoryLimitPerSig int
	Filter            filter.Config
}

// Pipeline wires RawLogSource, HistoryStore, the in-process P/C/F stages,
// a Summarizer, and an AlertSink into one orchestrated run.
type Pipeline struct {
	Source     source.RawLogSource
	History    history.Store
	Summarizer Summarizer
	Sink       alertsink.AlertSink
	Config     Config
}

// New builds a Pipeline from its collaborators.
func New(src source.RawLogSource, hist history.Store, summ Summarizer, sink alertsink.AlertSink, cfg Config) *Pipeline {
	return &Pipeline{Source: src, History: hist, Summarizer: summ, Sink: sink, Config: cfg}
}

// Run fetches one raw batch for tenantID, splits it per BATCH_SIZE,
// and processes every sub-batch, publishing each AnalysisResult as it
// completes. It returns every AnalysisResult produced. An
// UpstreamFetchFailed error aborts the whole run and is returned as-is;
// a PublishFailed error on any sub-batch aborts the remainder of the run
// but the AnalysisResults produced so far are still returned.
func (p *Pipeline) Run(ctx context.Context, tenantID string) ([]models.AnalysisResult, error) {
	raw, err := p.Source.FetchBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching batch: %w", err)
	}

	lines := splitLines(raw)
	batches := clusterer.SplitIntoBatches(lines, p.Config.BatchSize)

	results := make([]models.AnalysisResult, 0, len(batches))
	for _, batch := range batches {
		result, err := p.processBatch(ctx, tenantID, batch)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (p *Pipeline) processBatch(ctx context.Context, tenantID string, lines []string) (models.AnalysisResult, error) {
	clusters := clusterer.Cluster(lines, p.Config.MinSeverity)

	signatures := make([]string, 0, len(clusters))
	for _, c := range clusters {
		signatures = append(signatures, c.Signature)
	}

	limit := p.Config.HistoryLimitPerSig
	if limit <= 0 {
		limit = history.DefaultLimitPerSignature
	}

	hist, err := p.History.GetRecent(ctx, tenantID, signatures, limit)
	if err != nil {
		// HistoryReadFailed degrades to an empty history rather than
		// aborting the batch.
		slog.Error("history read failed, continuing with empty history", "error", err, "tenant_id", tenantID)
		hist = nil
	}

	alerting, err := filter.Apply(ctx, clusters, hist, p.Config.Filter, nil)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("applying filter: %w", err)
	}

	summary := p.summarize(ctx, alerting)

	result := models.AnalysisResult{
		AnalysisID:         uuid.NewString(),
		Summary:            summary,
		Clusters:           alerting,
		TotalLogsProcessed: len(lines),
		TotalClustersFound: len(alerting),
		ProcessedAt:        time.Now().UTC(),
	}

	p.recordHistory(ctx, tenantID, clusters)

	if p.Sink != nil {
		if err := p.Sink.Publish(ctx, result); err != nil {
			return result, fmt.Errorf("publishing result: %w", err)
		}
	}

	slog.Info("batch processed", "tenant_id", tenantID, "analysis_id", result.AnalysisID,
		"logs_processed", result.TotalLogsProcessed, "clusters_alerting", result.TotalClustersFound)

	return result, nil
}

// summarize asks the Summarizer for a summary, falling back to the
// deterministic summary when no Summarizer is wired or the call still
// manages to error (a SafeSummarizer never does, but a bare Summarizer
// passed directly by a test might).
func (p *Pipeline) summarize(ctx context.Context, clusters []models.Cluster) string {
	if p.Summarizer == nil {
		return summarizer.FallbackSummary(clusters)
	}
	summary, err := p.Summarizer.Summarize(ctx, clusters)
	if err != nil {
		slog.Error("summarizer failed, using fallback", "error", err)
		return summarizer.FallbackSummary(clusters)
	}
	return summary
}

// recordHistory appends every cluster's new timestamps to the tenant's
// HistoryWindow. A write failure is logged, never surfaced: duplicates
// are idempotent downstream and publishing must not block on it.
func (p *Pipeline) recordHistory(ctx context.Context, tenantID string, clusters []models.Cluster) {
	items := make([]history.Item, 0)
	for _, c := range clusters {
		for _, ts := range c.Timestamps {
			items = append(items, history.Item{TenantID: tenantID, Signature: c.Signature, Timestamp: ts})
		}
	}
	if len(items) == 0 {
		return
	}
	if err := p.History.AppendBatch(ctx, items); err != nil {
		slog.Error("history write failed", "error", err, "tenant_id", tenantID)
	}
}

func splitLines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, trimCR(s[start:]))
	}
	return lines
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}

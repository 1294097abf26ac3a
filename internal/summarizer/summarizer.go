// Package summarizer implements the external Summarizer collaborator:
// turning a batch's clusters into prose, and several batches' prose into
// one digest summary.
package summarizer

import (
	"context"

	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Summarizer turns clusters into prose. Both methods MAY fail; see
// SafeSummarizer for the deterministic-fallback decorator callers should
// wrap every provider in.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, clusters []models.Cluster) (string, error)
	Synthesize(ctx context.Context, summaries []string) (string, error)
}

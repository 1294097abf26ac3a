package summarizer

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// FallbackSummary is the deterministic summary used when no Summarizer is
// configured or the configured one fails.
func FallbackSummary(clusters []models.Cluster) string {
	if len(clusters) == 0 {
		return "Found 0 errors across 0 unique signatures."
	}

	total := 0
	top := clusters[0]
	for _, c := range clusters {
		total += c.Count
		if c.Count > top.Count {
			top = c
		}
	}

	return fmt.Sprintf("Found %d errors across %d unique signatures. Most common (%d×): '%s'.",
		total, len(clusters), top.Count, top.Signature)
}

// FallbackSynthesis concatenates summaries with a separator, used when no
// Synthesizer is configured or the configured one fails.
func FallbackSynthesis(summaries []string) string {
	return strings.Join(summaries, "\n\n---\n\n")
}

package summarizer

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// SafeSummarizer wraps a Summarizer so provider failures and panics never
// propagate: both methods always return a usable string and a nil error.
// A nil inner Summarizer is valid and always falls back.
type SafeSummarizer struct {
	inner   Summarizer
	timeout time.Duration
}

// NewSafeSummarizer wraps inner. inner may be nil.
func NewSafeSummarizer(inner Summarizer, timeout time.Duration) *SafeSummarizer {
	return &SafeSummarizer{inner: inner, timeout: timeout}
}

func (s *SafeSummarizer) Name() string {
	if s.inner == nil {
		return "fallback"
	}
	return s.inner.Name()
}

func (s *SafeSummarizer) Summarize(ctx context.Context, clusters []models.Cluster) (summary string, err error) {
	if s.inner == nil {
		return FallbackSummary(clusters), nil
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in summarizer, using fallback", "error", r, "provider", s.inner.Name())
			summary, err = FallbackSummary(clusters), nil
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, sErr := s.inner.Summarize(callCtx, clusters)
	if sErr != nil {
		slog.Warn("summarizer failed, using fallback", "error", sErr, "provider", s.inner.Name())
		return FallbackSummary(clusters), nil
	}
	return result, nil
}

func (s *SafeSummarizer) Synthesize(ctx context.Context, summaries []string) (result string, err error) {
	if s.inner == nil {
		return FallbackSynthesis(summaries), nil
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in synthesizer, using fallback", "error", r, "provider", s.inner.Name())
			result, err = FallbackSynthesis(summaries), nil
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, sErr := s.inner.Synthesize(callCtx, summaries)
	if sErr != nil {
		slog.Warn("synthesizer failed, using fallback", "error", sErr, "provider", s.inner.Name())
		return FallbackSynthesis(summaries), nil
	}
	return out, nil
}

var _ Summarizer = (*SafeSummarizer)(nil)

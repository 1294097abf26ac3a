package mock

import (
	"context"

	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Provider satisfies summarizer.Summarizer for testing.
type Provider struct {
	Name_          string
	SummarizeFunc  func(ctx context.Context, clusters []models.Cluster) (string, error)
	SynthesizeFunc func(ctx context.Context, summaries []string) (string, error)
}

func (m *Provider) Name() string { return m.Name_ }

func (m *Provider) Summarize(ctx context.Context, clusters []models.Cluster) (string, error) {
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, clusters)
	}
	return "", nil
}

func (m *Provider) Synthesize(ctx context.Context, summaries []string) (string, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, summaries)
	}
	return "", nil
}

// NewProvider returns a Provider with sensible default responses.
func NewProvider() *Provider {
	return &Provider{
		Name_: "mock",
		SummarizeFunc: func(_ context.Context, _ []models.Cluster) (string, error) {
			return "Mock summary: processed clusters for testing", nil
		},
		SynthesizeFunc: func(_ context.Context, _ []string) (string, error) {
			return "Mock synthesis: combined summaries for testing", nil
		},
	}
}

// NewFailingProvider returns a Provider that always returns the given error.
func NewFailingProvider(err error) *Provider {
	return &Provider{
		Name_: "mock-failing",
		SummarizeFunc: func(_ context.Context, _ []models.Cluster) (string, error) {
			return "", err
		},
		SynthesizeFunc: func(_ context.Context, _ []string) (string, error) {
			return "", err
		},
	}
}

// NewPanickingProvider returns a Provider whose methods panic, for
// exercising SafeSummarizer's panic recovery.
func NewPanickingProvider() *Provider {
	return &Provider{
		Name_: "mock-panicking",
		SummarizeFunc: func(_ context.Context, _ []models.Cluster) (string, error) {
			panic("simulated summarizer panic")
		},
		SynthesizeFunc: func(_ context.Context, _ []string) (string, error) {
			panic("simulated synthesizer panic")
		},
	}
}

// NewTimeoutProvider returns a Provider that blocks until context is cancelled.
func NewTimeoutProvider() *Provider {
	return &Provider{
		Name_: "mock-timeout",
		SummarizeFunc: func(ctx context.Context, _ []models.Cluster) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		SynthesizeFunc: func(ctx context.Context, _ []string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

package anthropic

import (
	"context"

	"github.com/kiranshivaraju/logdigest/internal/config"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Provider implements summarizer.Summarizer using Anthropic.
type Provider struct {
	cfg config.AnthropicConfig
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Summarize(_ context.Context, _ []models.Cluster) (string, error) {
	panic("anthropic.Provider.Summarize not yet implemented")
}

func (p *Provider) Synthesize(_ context.Context, _ []string) (string, error) {
	panic("anthropic.Provider.Synthesize not yet implemented")
}

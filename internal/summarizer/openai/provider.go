package openai

import (
	"context"

	"github.com/kiranshivaraju/logdigest/internal/config"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Provider implements summarizer.Summarizer using OpenAI.
type Provider struct {
	cfg config.OpenAIConfig
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Summarize(_ context.Context, _ []models.Cluster) (string, error) {
	panic("openai.Provider.Summarize not yet implemented")
}

func (p *Provider) Synthesize(_ context.Context, _ []string) (string, error) {
	panic("openai.Provider.Synthesize not yet implemented")
}

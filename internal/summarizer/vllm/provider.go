package vllm

import (
	"context"

	"github.com/kiranshivaraju/logdigest/internal/config"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Provider implements summarizer.Summarizer using vLLM.
type Provider struct {
	cfg config.VLLMConfig
}

func NewProvider(cfg config.VLLMConfig) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return "vllm" }

func (p *Provider) Summarize(_ context.Context, _ []models.Cluster) (string, error) {
	panic("vllm.Provider.Summarize not yet implemented")
}

func (p *Provider) Synthesize(_ context.Context, _ []string) (string, error) {
	panic("vllm.Provider.Synthesize not yet implemented")
}

// Package ollama implements internal/summarizer.Summarizer against a local
// Ollama server's /api/generate endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/logdigest/internal/config"
	"github.com/kiranshivaraju/logdigest/internal/summarizer/sumerrors"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// Provider implements summarizer.Summarizer using Ollama.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

// NewProvider builds a Provider. Since cfg carries no per-request timeout,
// callers are expected to bound calls via context (SafeSummarizer does this).
func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) Summarize(ctx context.Context, clusters []models.Cluster) (string, error) {
	if len(clusters) == 0 {
		return "", sumerrors.ErrInvalidResponse
	}

	var b strings.Builder
	b.WriteString("Summarize the following log error clusters in two or three sentences, most significant first:\n\n")
	for _, c := range clusters {
		fmt.Fprintf(&b, "- [%dx] %s\n", c.Count, c.RepresentativeLog)
	}
	return p.generate(ctx, b.String())
}

func (p *Provider) Synthesize(ctx context.Context, summaries []string) (string, error) {
	if len(summaries) == 0 {
		return "", sumerrors.ErrInvalidResponse
	}

	var b strings.Builder
	b.WriteString("Combine the following batch summaries into a single consolidated digest:\n\n")
	for _, s := range summaries {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return p.generate(ctx, b.String())
}

func (p *Provider) generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("encoding ollama request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("building ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", sumerrors.ErrInferenceTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", sumerrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama returned status %d", sumerrors.ErrProviderUnavailable, resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", sumerrors.ErrInvalidResponse, err)
	}
	if parsed.Response == "" {
		return "", sumerrors.ErrInvalidResponse
	}

	return strings.TrimSpace(parsed.Response), nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

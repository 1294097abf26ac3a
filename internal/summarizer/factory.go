package summarizer

import (
	"fmt"

	"github.com/kiranshivaraju/logdigest/internal/config"
	"github.com/kiranshivaraju/logdigest/internal/summarizer/anthropic"
	"github.com/kiranshivaraju/logdigest/internal/summarizer/ollama"
	"github.com/kiranshivaraju/logdigest/internal/summarizer/openai"
	"github.com/kiranshivaraju/logdigest/internal/summarizer/vllm"
)

// NewProvider constructs the configured Summarizer, or nil if no provider is
// configured (an empty cfg.Provider). Callers should still wrap the result
// in a SafeSummarizer since nil is a valid Summarizer-less state.
func NewProvider(cfg config.SummarizerConfig) (Summarizer, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q: must be one of ollama, vllm, openai, anthropic", cfg.Provider)
	}
}

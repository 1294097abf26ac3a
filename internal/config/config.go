package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the LogDigest server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Source     SourceConfig
	Parser     ParserConfig
	Filter     FilterConfig
	Sink       SinkConfig
	Summarizer SummarizerConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// SourceConfig selects and configures the RawLogSource. Kind is one of
// "loki" or "file".
type SourceConfig struct {
	Kind string
	Loki LokiSourceConfig
	File FileSourceConfig
}

type LokiSourceConfig struct {
	BaseURL   string
	Username  string
	Password  string
	OrgID     string
	Service   string
	Namespace string
	Window    time.Duration
	Limit     int
	Timeout   time.Duration
}

type FileSourceConfig struct {
	Path string
}

// ParserConfig carries the MIN_SEVERITY knob.
type ParserConfig struct {
	MinSeverity int
}

// FilterConfig carries the tiered-filter knobs, plus the batching and
// worker-pool knobs internal/pipeline applies between P/C and F.
type FilterConfig struct {
	HistoryTTL             time.Duration
	HMMTrustThreshold      int
	HMMConfidenceThreshold int
	MADZThreshold          float64
	PermutationN           int
	PermutationAlpha       float64
	BatchSize              int
	Workers                int
}

// SinkConfig selects and configures the AlertSink. Kind is one of "kafka"
// or "log".
type SinkConfig struct {
	Kind  string
	Kafka KafkaSinkConfig
}

type KafkaSinkConfig struct {
	Brokers []string
	Topic   string
}

type SummarizerConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

var validSummarizerProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
	"":          true, // Summarizer is optional; empty disables it
}

var validSourceKinds = map[string]bool{
	"loki": true,
	"file": true,
}

var validSinkKinds = map[string]bool{
	"kafka": true,
	"log":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LOGDIGEST_PORT", 8080),
			Env:  envString("LOGDIGEST_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Source: SourceConfig{
			Kind: envString("SOURCE_KIND", "loki"),
			Loki: LokiSourceConfig{
				BaseURL:   os.Getenv("LOKI_BASE_URL"),
				Username:  os.Getenv("LOKI_USERNAME"),
				Password:  os.Getenv("LOKI_PASSWORD"),
				OrgID:     envString("LOKI_ORG_ID", "default"),
				Service:   os.Getenv("LOKI_SERVICE"),
				Namespace: os.Getenv("LOKI_NAMESPACE"),
				Window:    envDuration("LOKI_WINDOW", 5*time.Minute),
				Limit:     envInt("LOKI_LIMIT", 5000),
				Timeout:   envDuration("LOKI_TIMEOUT", 30*time.Second),
			},
			File: FileSourceConfig{
				Path: os.Getenv("FILE_SOURCE_PATH"),
			},
		},
		Parser: ParserConfig{
			MinSeverity: envInt("MIN_SEVERITY", 2), // WARNING
		},
		Filter: FilterConfig{
			HistoryTTL:             envDurationHours("HISTORY_TTL_HOURS", 48*time.Hour),
			HMMTrustThreshold:      envInt("HMM_TRUST_THRESHOLD", 20),
			HMMConfidenceThreshold: envInt("HMM_CONFIDENCE_THRESHOLD", 40),
			MADZThreshold:          envFloat("MAD_Z_THRESHOLD", 3.5),
			PermutationN:           envInt("PERMUTATION_N", 1000),
			PermutationAlpha:       envFloat("PERMUTATION_ALPHA", 0.05),
			BatchSize:              envInt("BATCH_SIZE", 10_000),
			Workers:                envInt("FILTER_WORKERS", 8),
		},
		Sink: SinkConfig{
			Kind: envString("SINK_KIND", "log"),
			Kafka: KafkaSinkConfig{
				Brokers: envStringSlice("KAFKA_BROKERS", nil),
				Topic:   envString("KAFKA_TOPIC", "logdigest.alerts"),
			},
		},
		Summarizer: SummarizerConfig{
			Provider:         os.Getenv("SUMMARIZER_PROVIDER"),
			InferenceTimeout: envDurationSecs("SUMMARIZER_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4"),
			},
			Anthropic: AnthropicConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validSourceKinds[c.Source.Kind] {
		return fmt.Errorf("SOURCE_KIND must be one of loki, file; got %q", c.Source.Kind)
	}
	if c.Source.Kind == "loki" {
		if c.Source.Loki.BaseURL == "" {
			return fmt.Errorf("LOKI_BASE_URL is required when SOURCE_KIND is loki")
		}
		if !strings.HasPrefix(c.Source.Loki.BaseURL, "http://") && !strings.HasPrefix(c.Source.Loki.BaseURL, "https://") {
			return fmt.Errorf("LOKI_BASE_URL must start with http:// or https://, got %q", c.Source.Loki.BaseURL)
		}
	}
	if c.Source.Kind == "file" && c.Source.File.Path == "" {
		return fmt.Errorf("FILE_SOURCE_PATH is required when SOURCE_KIND is file")
	}

	if !validSinkKinds[c.Sink.Kind] {
		return fmt.Errorf("SINK_KIND must be one of kafka, log; got %q", c.Sink.Kind)
	}
	if c.Sink.Kind == "kafka" && len(c.Sink.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when SINK_KIND is kafka")
	}

	if !validSummarizerProviders[c.Summarizer.Provider] {
		return fmt.Errorf("SUMMARIZER_PROVIDER must be one of ollama, vllm, openai, anthropic, or empty; got %q", c.Summarizer.Provider)
	}
	if c.Summarizer.Provider == "openai" && c.Summarizer.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when SUMMARIZER_PROVIDER is openai")
	}
	if c.Summarizer.Provider == "anthropic" && c.Summarizer.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when SUMMARIZER_PROVIDER is anthropic")
	}

	if c.Parser.MinSeverity < 0 || c.Parser.MinSeverity > 4 {
		return fmt.Errorf("MIN_SEVERITY must be between 0 and 4; got %d", c.Parser.MinSeverity)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envStringSlice(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envDurationHours(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	hours, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(hours) * time.Hour
}

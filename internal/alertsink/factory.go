package alertsink

import (
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/logdigest/internal/config"
)

// NewSink constructs the configured AlertSink.
func NewSink(cfg config.SinkConfig, logger *slog.Logger) (AlertSink, error) {
	switch cfg.Kind {
	case "kafka":
		return NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	case "log":
		return NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("alertsink: unknown sink kind %q: must be one of kafka, log", cfg.Kind)
	}
}

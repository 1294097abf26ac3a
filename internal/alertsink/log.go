package alertsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// LogSink publishes by writing a structured log line. It is the default
// sink for local development and for deployments with no message broker.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %v", ErrPublishFailed, err)
	}
	s.logger.Info("alert published", "payload", string(payload))
	return nil
}

func (s *LogSink) Close() error { return nil }

var _ AlertSink = (*LogSink)(nil)

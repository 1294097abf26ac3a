package alertsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/logdigest/pkg/models"
)

func TestLogSink_Publish(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewLogSink(logger)

	result := models.AnalysisResult{
		AnalysisID:         "abc-123",
		Summary:            "two signatures seen",
		TotalLogsProcessed: 10,
		TotalClustersFound: 2,
		ProcessedAt:        time.Now(),
	}

	if err := sink.Publish(context.Background(), result); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	var logged map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logged); err != nil {
		t.Fatalf("failed to parse logged line: %v", err)
	}
	payload, ok := logged["payload"].(string)
	if !ok || !strings.Contains(payload, "abc-123") {
		t.Errorf("expected payload field to contain analysis id, got %v", logged["payload"])
	}
}

func TestLogSink_DefaultLoggerWhenNil(t *testing.T) {
	sink := NewLogSink(nil)
	if sink.logger == nil {
		t.Fatal("expected default logger to be used")
	}
}

func TestLogSink_Close(t *testing.T) {
	sink := NewLogSink(nil)
	if err := sink.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestLogSink_PublishUnmarshalableValue(t *testing.T) {
	sink := NewLogSink(nil)
	err := sink.Publish(context.Background(), make(chan int))
	if err == nil {
		t.Fatal("expected error marshaling an unsupported type")
	}
}

package alertsink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/logdigest/pkg/models"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes analysis payloads as JSON records to a Kafka-compatible
// broker (Kafka or Redpanda), keyed by analysis_id for partition affinity.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink dials brokers and returns a sink producing to topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("alertsink: at least one broker address is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("alertsink: failed to create kafka client: %w", err)
	}

	return &KafkaSink{client: client, topic: topic}, nil
}

// Publish encodes result as JSON and produces it synchronously. The whole
// call either succeeds or fails; there is no partial publish.
func (s *KafkaSink) Publish(ctx context.Context, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %v", ErrPublishFailed, err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(analysisID(result)),
		Value: payload,
	}

	results := s.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	return nil
}

func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}

// analysisID extracts the partition key from the payloads the pipeline
// actually produces; anything else falls back to an empty key.
func analysisID(result any) string {
	switch v := result.(type) {
	case models.AnalysisResult:
		return v.AnalysisID
	case *models.AnalysisResult:
		return v.AnalysisID
	case models.Digest:
		return v.AnalysisID
	case *models.Digest:
		return v.AnalysisID
	default:
		return ""
	}
}

var _ AlertSink = (*KafkaSink)(nil)

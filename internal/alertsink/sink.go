// Package alertsink publishes AnalysisResult/Digest payloads to a downstream
// transport once the pipeline has finished processing a batch.
package alertsink

import "context"

// AlertSink publishes a finished analysis payload. Publishing is
// all-or-nothing per invocation; retries are the caller's responsibility.
type AlertSink interface {
	Publish(ctx context.Context, result any) error
	Close() error
}

// Package source implements the external RawLogSource collaborator:
// anything that can produce a batch of raw log bytes to feed the pipeline.
package source

import "context"

// RawLogSource is the contract every ingestion adapter satisfies. FetchBatch
// returns raw UTF-8 text, lines separated by "\n"; a source whose payload is
// gzip-compressed must decompress it transparently before returning.
type RawLogSource interface {
	FetchBatch(ctx context.Context) ([]byte, error)
}

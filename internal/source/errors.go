package source

import "errors"

// Sentinel errors for RawLogSource failures: the caller aborts the batch
// and surfaces the error rather than retrying silently.
var (
	ErrSourceUnreachable = errors.New("log source unreachable")
	ErrSourceTimeout     = errors.New("log source timeout")
)

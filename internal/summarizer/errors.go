package summarizer

import "github.com/kiranshivaraju/logdigest/internal/summarizer/sumerrors"

// Re-exported so callers only ever need to import internal/summarizer.
var (
	ErrProviderUnavailable = sumerrors.ErrProviderUnavailable
	ErrInferenceTimeout    = sumerrors.ErrInferenceTimeout
	ErrInvalidResponse     = sumerrors.ErrInvalidResponse
)

package alertsink

import "errors"

// ErrPublishFailed wraps any failure to hand a payload to the underlying
// transport. Per the core error taxonomy this is surfaced to the caller,
// never swallowed, so the caller's transport can retry.
var ErrPublishFailed = errors.New("alertsink: publish failed")

package pilot

import "errors"

// The four failure kinds that terminate a run. All are fatal to the
// current run, none are retried, and none may leak into a second run's
// state. StepLimit is a terminal reason, not an error.
var (
	// ErrCaptureUnavailable wraps a bridge, device, or transfer failure
	// during screen capture.
	ErrCaptureUnavailable = errors.New("screen capture unavailable")

	// ErrDecisionUnavailable wraps a decision service failure, either
	// transport (network/HTTP) or a malformed structured reply. The
	// wrapped cause distinguishes the two.
	ErrDecisionUnavailable = errors.New("decision service unavailable")

	// ErrExecutionFailed reports a non-successful action application.
	ErrExecutionFailed = errors.New("action execution failed")

	// ErrAnomalousDecision reports an empty action without a done status:
	// the service failed to make forward progress and did not claim
	// completion.
	ErrAnomalousDecision = errors.New("anomalous decision: empty action without done status")
)

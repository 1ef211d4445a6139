package pilot

import "context"

// Bridge issues capture and action commands to the connected device.
// Implementations must be safe to call repeatedly; transient artifacts
// created during a capture are cleaned up before the call returns.
type Bridge interface {
	// Capture acquires a fresh screen snapshot as encoded PNG bytes.
	// A device, tool, or transfer failure is returned as an error carrying
	// a human-readable diagnostic; Capture never panics into the caller.
	Capture(ctx context.Context) ([]byte, error)

	// Apply executes one action instruction on the device. It reports true
	// only when the underlying process succeeded. Execution errors are
	// logged by the implementation and surface as false, never as a panic.
	Apply(ctx context.Context, action string) bool
}

// Decider chooses the single next action for a goal given the current
// screen. Each call is a fresh, stateless request: the service is shown
// only the goal and the screenshot, never any client-held history.
// Correctness therefore depends on each screenshot fully capturing the
// state needed to choose the next action; if that proves insufficient the
// fix is a bounded recent-history argument added here, not implicit
// service-side memory.
type Decider interface {
	Decide(ctx context.Context, goal string, screenshot []byte) (Decision, error)
}

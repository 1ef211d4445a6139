package pilot

// Decision is the decision service's structured next-step reply.
// Invariant: Action may be empty only when Done is true. The loop rejects
// the ambiguous empty-action/continue combination instead of guessing.
type Decision struct {
	// Action is a single executable instruction, e.g. "input tap 100 200".
	Action string
	// Done reports that the service considers the overall goal satisfied.
	Done bool
	// Rationale is the service's brief explanation for the chosen action.
	Rationale string
}

// StepResult records the outcome of one loop step. It exists for
// logging and telemetry only and is never persisted.
type StepResult struct {
	Ordinal    int
	Decision   Decision
	Executed   bool
	Screenshot []byte
}

// TerminalReason classifies how a run ended.
type TerminalReason string

const (
	// ReasonGoalDone means the decision service reported the goal complete.
	ReasonGoalDone TerminalReason = "goal_done"
	// ReasonStepLimit means the fixed step ceiling was reached. This is a
	// benign backstop against services that never self-report completion,
	// not an error.
	ReasonStepLimit TerminalReason = "step_limit"
	// ReasonCancelled means the operator requested a stop.
	ReasonCancelled TerminalReason = "cancelled"
	// ReasonFatalError means capture, decision, or execution failed.
	// No stage is ever retried: a misfire invalidates the device state the
	// next stage would reason about.
	ReasonFatalError TerminalReason = "fatal_error"
)

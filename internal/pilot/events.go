package pilot

import "time"

// EventType discriminates messages on the loop's outbound event stream.
type EventType string

const (
	// EventLog carries a progress line for the operator.
	EventLog EventType = "log"
	// EventScreen carries the latest screenshot, emitted right after a
	// successful capture. The bytes are handed to consumers read-only.
	EventScreen EventType = "screen"
	// EventStep carries the StepResult recorded after an executed step.
	EventStep EventType = "step"
	// EventTerminal is emitted exactly once per run, last, before the
	// stream closes.
	EventTerminal EventType = "terminal"
)

// Event is the only coupling between the control loop and any consumer.
// The loop emits events fire-and-forget and never blocks on, or compiles
// against, a presentation layer.
type Event struct {
	Type      EventType
	RunID     string
	Step      int
	Timestamp time.Time

	// Message is set for EventLog.
	Message string
	// Screenshot is set for EventScreen.
	Screenshot []byte
	// Result is set for EventStep.
	Result *StepResult

	// Reason and Err are set for EventTerminal. Err is nil for the benign
	// outcomes (goal done, step limit, cancelled).
	Reason TerminalReason
	Err    error
}

// emit publishes one event. Log, screen, and step events are
// fire-and-forget: a slow or absent consumer drops them rather than
// stalling the loop, and drops are counted for the final log line. The
// terminal event rides a reserved buffer slot instead, so a saturated
// stream still ends terminal-then-close.
func (p *Pilot) emit(ev Event) {
	ev.RunID = p.runID
	ev.Timestamp = time.Now().UTC()
	if ev.Type == EventTerminal {
		// The reserved slot is free by construction: regular emissions
		// never occupy the last slot, only the loop goroutine sends, and
		// finish emits exactly once.
		p.events <- ev
		return
	}
	if len(p.events) >= cap(p.events)-1 {
		p.dropped.Add(1)
		return
	}
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
	}
}

// Events returns the run's outbound stream. The channel is closed after
// the terminal event once Run returns.
func (p *Pilot) Events() <-chan Event {
	return p.events
}

// Package pilot owns the capture -> decide -> execute control loop that
// drives one automation run against a connected device. It depends on its
// two adapter contracts only; everything it tells the outside world goes
// through the one-way event stream.
package pilot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxSteps bounds a run against decision services that never
	// self-report completion, e.g. oscillating between two UI states.
	DefaultMaxSteps = 20
	// DefaultSettleDelay is the fixed pause after a successful action so
	// the device UI can update before the next capture. Fixed rather than
	// adaptive: deterministic and simple to reason about.
	DefaultSettleDelay = 2 * time.Second

	defaultEventBuffer = 256
)

// Config carries the loop's fixed run parameters.
type Config struct {
	MaxSteps    int
	SettleDelay time.Duration
	// EventBuffer sizes the outbound event channel, not counting the
	// slot reserved for the terminal event.
	EventBuffer int
}

// Pilot executes one automation run. A Pilot is single-use: every run
// starts from a fresh instance so no state, and no error, crosses into a
// second run.
type Pilot struct {
	bridge  Bridge
	decider Decider
	cfg     Config
	logger  *zap.Logger
	runID   string

	stepCount int
	running   atomic.Bool
	stop      atomic.Bool
	events    chan Event
	dropped   atomic.Uint64
}

// New assembles a Pilot around the two adapter contracts.
func New(bridge Bridge, decider Decider, cfg Config, logger *zap.Logger) *Pilot {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	runID := uuid.New().String()[:8]
	return &Pilot{
		bridge:  bridge,
		decider: decider,
		cfg:     cfg,
		logger:  logger.Named("pilot").With(zap.String("run_id", runID)),
		runID:   runID,
		// One extra slot is reserved for the terminal event.
		events:  make(chan Event, cfg.EventBuffer+1),
	}
}

// Stop requests cooperative cancellation. The flag is observed at the top
// of each step and after each blocking sub-call; an in-flight capture,
// decision, or execution is allowed to complete first.
func (p *Pilot) Stop() {
	p.stop.Store(true)
}

// Steps reports how many steps the run has started.
func (p *Pilot) Steps() int {
	return p.stepCount
}

// Run drives the loop to a terminal state and returns the reason. The
// returned error is non-nil only for ReasonFatalError. The event stream
// closes after the terminal event; Run must be called at most once.
func (p *Pilot) Run(ctx context.Context, goal string) (TerminalReason, error) {
	if !p.running.CompareAndSwap(false, true) {
		return ReasonFatalError, fmt.Errorf("pilot is single-use: run already started")
	}
	defer p.running.Store(false)
	defer close(p.events)

	p.logf("starting run: %q (max %d steps)", goal, p.cfg.MaxSteps)
	p.logf("prerequisites: adb installed and on PATH, device connected over USB")
	p.logf("prerequisites: USB debugging enabled and this computer authorized on the device")

	for {
		p.stepCount++
		if p.cancelled(ctx) {
			return p.finish(ReasonCancelled, nil)
		}
		p.logf("--- step %d ---", p.stepCount)

		// CAPTURING
		shot, err := p.bridge.Capture(ctx)
		if err != nil {
			return p.finish(ReasonFatalError, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err))
		}
		p.emit(Event{Type: EventScreen, Step: p.stepCount, Screenshot: shot})
		if p.cancelled(ctx) {
			return p.finish(ReasonCancelled, nil)
		}

		// DECIDING
		p.logf("thinking: analyzing screen for next action")
		dec, err := p.decider.Decide(ctx, goal, shot)
		if err != nil {
			return p.finish(ReasonFatalError, fmt.Errorf("%w: %w", ErrDecisionUnavailable, err))
		}
		p.logf("rationale: %s", dec.Rationale)
		if dec.Action == "" && !dec.Done {
			return p.finish(ReasonFatalError, ErrAnomalousDecision)
		}
		if p.cancelled(ctx) {
			return p.finish(ReasonCancelled, nil)
		}

		// EXECUTING
		executed := false
		if dec.Action != "" {
			p.logf("executing: %s", dec.Action)
			if !p.bridge.Apply(ctx, dec.Action) {
				return p.finish(ReasonFatalError, fmt.Errorf("%w: %q", ErrExecutionFailed, dec.Action))
			}
			executed = true
		}
		p.emit(Event{Type: EventStep, Step: p.stepCount, Result: &StepResult{
			Ordinal:    p.stepCount,
			Decision:   dec,
			Executed:   executed,
			Screenshot: shot,
		}})
		if executed {
			p.settle(ctx)
		}

		if dec.Done {
			p.logf("goal reported done: %s", dec.Rationale)
			return p.finish(ReasonGoalDone, nil)
		}
		if p.cancelled(ctx) {
			return p.finish(ReasonCancelled, nil)
		}
		if p.stepCount >= p.cfg.MaxSteps {
			p.logf("step limit of %d reached without completion", p.cfg.MaxSteps)
			return p.finish(ReasonStepLimit, nil)
		}
	}
}

// cancelled reports whether a stop request or context cancellation is
// pending at this checkpoint.
func (p *Pilot) cancelled(ctx context.Context) bool {
	return p.stop.Load() || ctx.Err() != nil
}

// settle waits out the fixed post-action delay. Context cancellation only
// shortens the wait; the decision to stop belongs to the next checkpoint.
func (p *Pilot) settle(ctx context.Context) {
	if p.cfg.SettleDelay <= 0 {
		return
	}
	t := time.NewTimer(p.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (p *Pilot) finish(reason TerminalReason, err error) (TerminalReason, error) {
	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.Int("steps", p.stepCount),
	}
	if dropped := p.dropped.Load(); dropped > 0 {
		fields = append(fields, zap.Uint64("dropped_events", dropped))
	}
	if err != nil {
		p.logger.Error("run ended", append(fields, zap.Error(err))...)
	} else {
		p.logger.Info("run ended", fields...)
	}
	p.emit(Event{Type: EventTerminal, Step: p.stepCount, Reason: reason, Err: err})
	return reason, err
}

// logf mirrors a progress line to both the structured log and the event
// stream so a shell-less run still leaves a full trace.
func (p *Pilot) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.logger.Info(msg)
	p.emit(Event{Type: EventLog, Step: p.stepCount, Message: msg})
}

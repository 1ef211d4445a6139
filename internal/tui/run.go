package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xkilldash9x/droidpilot/internal/config"
	"github.com/xkilldash9x/droidpilot/internal/pilot"
)

// Run renders the event stream interactively until the operator quits or
// the stream ends. stop is forwarded to the loop when the operator asks.
func Run(ctx context.Context, goal string, events <-chan pilot.Event, stop func(), cfg config.UIConfig) error {
	program := tea.NewProgram(
		NewModel(goal, events, stop, cfg),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

// RunPlain is the no-TUI fallback: it copies the event stream to w as
// plain lines and returns the run's terminal event, or nil if the stream
// closed without one.
func RunPlain(w io.Writer, events <-chan pilot.Event) *pilot.Event {
	var terminal *pilot.Event
	for ev := range events {
		switch ev.Type {
		case pilot.EventLog:
			fmt.Fprintln(w, ev.Message)
		case pilot.EventScreen:
			fmt.Fprintf(w, "captured screen (%d bytes)\n", len(ev.Screenshot))
		case pilot.EventStep:
			if ev.Result != nil {
				fmt.Fprintf(w, "step %d result: action=%q executed=%t done=%t\n",
					ev.Result.Ordinal, ev.Result.Decision.Action, ev.Result.Executed, ev.Result.Decision.Done)
			}
		case pilot.EventTerminal:
			evCopy := ev
			terminal = &evCopy
			if ev.Err != nil {
				fmt.Fprintf(w, "run failed (%s): %v\n", ev.Reason, ev.Err)
			} else {
				fmt.Fprintf(w, "run ended: %s after %d step(s)\n", ev.Reason, ev.Step)
			}
		}
	}
	return terminal
}

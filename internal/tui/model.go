// Package tui is the presentation shell. It consumes the control loop's
// event stream and renders progress, the latest screen capture, and the
// terminal outcome. It relays exactly one thing back into the loop: a
// stop request. The loop never waits on anything here.
package tui

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xkilldash9x/droidpilot/internal/config"
	"github.com/xkilldash9x/droidpilot/internal/pilot"
)

const maxLogLines = 1000

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64B446")).
			Bold(true)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))
	screenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	outcomeOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64B446")).
			Bold(true)
	outcomeErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6347")).
			Bold(true)
	viewportStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#888888")).
			Padding(0, 1)
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type eventMsg struct {
	ev pilot.Event
}

type streamClosedMsg struct{}

// Model renders one automation run.
type Model struct {
	goal   string
	events <-chan pilot.Event
	stop   func()
	cfg    config.UIConfig

	output  viewport.Model
	wait    spinner.Model
	lines   []string
	width   int
	height  int
	ready   bool
	stopped bool

	step       int
	screenInfo string
	terminal   *pilot.Event
	closed     bool
}

// NewModel builds the shell for one run's event stream. stop is the
// loop's cooperative cancellation hook.
func NewModel(goal string, events <-chan pilot.Event, stop func(), cfg config.UIConfig) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#64B446"))

	vp := viewport.New(80, 20)
	vp.Style = viewportStyle

	return Model{
		goal:   goal,
		events: events,
		stop:   stop,
		cfg:    cfg,
		output: vp,
		wait:   sp,
	}
}

func waitForEvent(events <-chan pilot.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.wait.Tick, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.output.Width = msg.Width - 4
		m.output.Height = max(msg.Height-7, 3)
		m.ready = true
		m.refreshOutput()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if m.terminal == nil && !m.stopped {
				m.stopped = true
				m.stop()
				m.appendLine("stop requested; finishing current step...")
			}
			return m, nil
		case "q", "ctrl+c":
			if m.terminal == nil && !m.stopped {
				m.stopped = true
				m.stop()
			}
			// The run goroutine unwinds through its next checkpoint; the
			// shell can leave immediately.
			return m, tea.Quit
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.wait, cmd = m.wait.Update(msg)
		return m, cmd

	case eventMsg:
		m.consume(msg.ev)
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.closed = true
		if m.terminal != nil {
			return m, nil
		}
		// Stream ended without a terminal event; nothing left to show.
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) consume(ev pilot.Event) {
	switch ev.Type {
	case pilot.EventLog:
		m.step = ev.Step
		m.appendLine(ev.Message)
	case pilot.EventScreen:
		m.step = ev.Step
		m.screenInfo = m.describeScreen(ev.Screenshot)
	case pilot.EventStep:
		if ev.Result != nil {
			m.appendLine(fmt.Sprintf("step %d result: action=%q executed=%t done=%t",
				ev.Result.Ordinal, ev.Result.Decision.Action, ev.Result.Executed, ev.Result.Decision.Done))
		}
	case pilot.EventTerminal:
		evCopy := ev
		m.terminal = &evCopy
		if ev.Err != nil {
			m.appendLine("run failed: " + ev.Err.Error())
		} else {
			m.appendLine("run ended: " + string(ev.Reason))
		}
	}
}

// describeScreen saves the latest capture to the preview file and returns
// the one-line summary shown above the log viewport. The thumbnail bounds
// are display-only; the loop always sends the full-size capture onward.
func (m *Model) describeScreen(shot []byte) string {
	preview := m.cfg.PreviewFile
	if preview == "" {
		preview = filepath.Join(os.TempDir(), "droidpilot_preview.png")
	}
	if err := os.WriteFile(preview, shot, 0o644); err != nil {
		return fmt.Sprintf("screen: %d bytes (preview write failed: %v)", len(shot), err)
	}

	imgCfg, err := png.DecodeConfig(bytes.NewReader(shot))
	if err != nil {
		return fmt.Sprintf("screen: %d bytes -> %s", len(shot), preview)
	}
	tw, th := fitThumbnail(imgCfg.Width, imgCfg.Height, m.cfg.ThumbnailWidth, m.cfg.ThumbnailHeight)
	return fmt.Sprintf("screen: %dx%d (thumb %dx%d) -> %s", imgCfg.Width, imgCfg.Height, tw, th, preview)
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	m.refreshOutput()
}

func (m *Model) refreshOutput() {
	m.output.SetContent(strings.Join(m.lines, "\n"))
	m.output.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("droidpilot") + "  " + statusStyle.Render(m.goal) + "\n")

	switch {
	case m.terminal == nil:
		b.WriteString(m.wait.View() + statusStyle.Render(fmt.Sprintf(" step %d", m.step)) + "\n")
	case m.terminal.Err != nil:
		b.WriteString(outcomeErrStyle.Render(fmt.Sprintf("✗ %s after %d step(s)", m.terminal.Reason, m.terminal.Step)) + "\n")
	default:
		b.WriteString(outcomeOKStyle.Render(fmt.Sprintf("✓ %s after %d step(s)", m.terminal.Reason, m.terminal.Step)) + "\n")
	}

	if m.screenInfo != "" {
		b.WriteString(screenStyle.Render(m.screenInfo) + "\n")
	}
	b.WriteString(m.output.View() + "\n")

	if m.terminal == nil {
		b.WriteString(helpStyle.Render("esc: stop run · q: stop and quit · ↑/↓: scroll"))
	} else {
		b.WriteString(helpStyle.Render("q: quit · ↑/↓: scroll"))
	}
	return b.String()
}

// fitThumbnail scales (w, h) down into the bounding box, preserving
// aspect ratio. Images already inside the box are left alone.
func fitThumbnail(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return w, h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := min(scaleW, scaleH)
	return max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
}

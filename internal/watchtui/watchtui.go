// Package watchtui is a live terminal viewer for one supervised run: it
// subscribes to a uiemit.InProcess emitter and renders the streaming
// assistant message, tool calls, and approval prompts as they arrive.
package watchtui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/agentsup/agentsup/internal/uiemit"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1e1e2e")).
			Background(lipgloss.Color("#89b4fa")).
			Padding(0, 2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a6adc8")).
			Background(lipgloss.Color("#313244")).
			Padding(0, 1)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6c7086")).
			Italic(true)

	toolStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f9e2af"))

	toolResultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a6e3a1"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f38ba8"))

	approvalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1e1e2e")).
			Background(lipgloss.Color("#f38ba8")).
			Padding(0, 1)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a6e3a1"))
)

// line is one rendered row of the transcript.
type line struct {
	kind string // "text", "thinking", "tool", "tool_result", "error", "approval", "done"
	text string
}

// Model is the bubbletea model driving the live viewer.
type Model struct {
	sessionID string
	eventCh   <-chan uiemit.Envelope

	width, height int
	lines         []line
	pending       strings.Builder
	awaitingPTY   bool
	done          bool
	cancelled     bool
}

// envelopeMsg wraps a uiemit.Envelope as a tea.Msg.
type envelopeMsg uiemit.Envelope

// streamClosedMsg signals the subscription channel closed.
type streamClosedMsg struct{}

type tickMsg struct{}

// New builds a Model seeded with any already-replayed envelopes, to be run
// via tea.NewProgram.
func New(sessionID string, eventCh <-chan uiemit.Envelope, replayed []uiemit.Envelope) Model {
	m := Model{sessionID: sessionID, eventCh: eventCh}
	for _, env := range replayed {
		m.apply(env)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEnvelope(m.eventCh), tickEvery(), tea.SetWindowTitle("agentsup watch"))
}

func waitForEnvelope(ch <-chan uiemit.Envelope) tea.Cmd {
	return func() tea.Msg {
		env, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return envelopeMsg(env)
	}
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m, nil
	case envelopeMsg:
		m.apply(uiemit.Envelope(msg))
		if m.done || m.cancelled {
			return m, tea.Quit
		}
		return m, waitForEnvelope(m.eventCh)
	case streamClosedMsg:
		return m, tea.Quit
	case tickMsg:
		return m, tickEvery()
	}
	return m, nil
}

func (m *Model) apply(env uiemit.Envelope) {
	switch env.Name {
	case uiemit.EventChunk:
		if p, ok := env.Payload.(uiemit.ChunkPayload); ok {
			m.appendText(p.Content)
		}
	case uiemit.EventThinking:
		if p, ok := env.Payload.(uiemit.ThinkingPayload); ok {
			m.lines = append(m.lines, line{kind: "thinking", text: p.Content})
		}
	case uiemit.EventToolUse:
		if p, ok := env.Payload.(uiemit.ToolUsePayload); ok {
			m.lines = append(m.lines, line{kind: "tool", text: fmt.Sprintf("%s %v", p.Name, p.Input)})
		}
	case uiemit.EventToolResult:
		if p, ok := env.Payload.(uiemit.ToolResultPayload); ok {
			m.lines = append(m.lines, line{kind: "tool_result", text: p.Output})
		}
	case uiemit.EventPermissionDenied:
		if p, ok := env.Payload.(uiemit.PermissionDeniedPayload); ok {
			m.awaitingPTY = true
			for _, d := range p.Denials {
				m.lines = append(m.lines, line{kind: "approval", text: fmt.Sprintf("approval requested: %s", d.ToolName)})
			}
		}
	case uiemit.EventError:
		if p, ok := env.Payload.(uiemit.ErrorPayload); ok {
			m.lines = append(m.lines, line{kind: "error", text: p.Error})
		}
	case uiemit.EventDone:
		m.done = true
		m.lines = append(m.lines, line{kind: "done", text: "done"})
	case uiemit.EventCancelled:
		m.cancelled = true
		m.lines = append(m.lines, line{kind: "done", text: "cancelled"})
		m.awaitingPTY = false
	}
}

func (m *Model) appendText(text string) {
	m.pending.WriteString(text)
	if len(m.lines) > 0 && m.lines[len(m.lines)-1].kind == "text" {
		m.lines[len(m.lines)-1].text += text
		return
	}
	m.lines = append(m.lines, line{kind: "text", text: text})
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	width := m.width
	if width <= 0 {
		width = 100
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("agentsup watch: %s", m.sessionID)))
	b.WriteString("\n\n")

	for _, l := range m.lines {
		switch l.kind {
		case "thinking":
			b.WriteString(thinkingStyle.Render(ansi.Wrap(l.text, width, "")))
		case "tool":
			b.WriteString(toolStyle.Render("> " + l.text))
		case "tool_result":
			b.WriteString(toolResultStyle.Render(ansi.Truncate(l.text, width, "…")))
		case "error":
			b.WriteString(errorStyle.Render("error: " + l.text))
		case "approval":
			b.WriteString(approvalStyle.Render(l.text))
		case "done":
			b.WriteString(doneStyle.Render("[" + l.text + "]"))
		default:
			b.WriteString(ansi.Wrap(l.text, width, ""))
		}
		b.WriteString("\n")
	}

	status := "streaming"
	if m.awaitingPTY {
		status = "awaiting approval (y/n)"
	}
	if m.done {
		status = "done"
	}
	if m.cancelled {
		status = "cancelled"
	}
	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render(status + " — q to quit"))
	return b.String()
}

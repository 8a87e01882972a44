package watchtui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentsup/agentsup/internal/uiemit"
)

func TestApplyChunkAppendsToTrailingTextLine(t *testing.T) {
	m := New("s1", nil, nil)
	m.apply(uiemit.Envelope{Name: uiemit.EventChunk, Payload: uiemit.ChunkPayload{Content: "He"}})
	m.apply(uiemit.Envelope{Name: uiemit.EventChunk, Payload: uiemit.ChunkPayload{Content: "llo"}})

	if len(m.lines) != 1 {
		t.Fatalf("lines = %d, want 1 (chunks coalesce)", len(m.lines))
	}
	if m.lines[0].text != "Hello" {
		t.Fatalf("text = %q, want Hello", m.lines[0].text)
	}
}

func TestApplyThinkingIsSeparateFromText(t *testing.T) {
	m := New("s1", nil, nil)
	m.apply(uiemit.Envelope{Name: uiemit.EventChunk, Payload: uiemit.ChunkPayload{Content: "text"}})
	m.apply(uiemit.Envelope{Name: uiemit.EventThinking, Payload: uiemit.ThinkingPayload{Content: "thinking"}})
	m.apply(uiemit.Envelope{Name: uiemit.EventChunk, Payload: uiemit.ChunkPayload{Content: " more"}})

	if len(m.lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(m.lines))
	}
	if m.lines[1].kind != "thinking" {
		t.Fatalf("lines[1].kind = %q, want thinking", m.lines[1].kind)
	}
}

func TestApplyPermissionDeniedSetsAwaitingPTY(t *testing.T) {
	m := New("s1", nil, nil)
	m.apply(uiemit.Envelope{Name: uiemit.EventPermissionDenied, Payload: uiemit.PermissionDeniedPayload{
		Denials: []uiemit.PermissionDenial{{ToolName: "Bash"}},
	}})
	if !m.awaitingPTY {
		t.Fatal("expected awaitingPTY = true after permission_denied")
	}
	view := m.View()
	if !strings.Contains(view, "awaiting approval") {
		t.Fatalf("View() = %q, want approval status", view)
	}
}

func TestApplyDoneQuits(t *testing.T) {
	m := New("s1", nil, nil)
	m.apply(uiemit.Envelope{Name: uiemit.EventDone, Payload: uiemit.DonePayload{}})
	if !m.done {
		t.Fatal("expected done = true")
	}

	next, cmd := m.Update(envelopeMsg(uiemit.Envelope{Name: uiemit.EventDone, Payload: uiemit.DonePayload{}}))
	nm := next.(Model)
	if !nm.done {
		t.Fatal("expected done = true after Update")
	}
	if cmd == nil {
		t.Fatal("expected a quit cmd after done")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Fatalf("expected tea.Quit message, got %#v", msg)
	}
}

func TestStreamClosedQuits(t *testing.T) {
	m := New("s1", nil, nil)
	_, cmd := m.Update(streamClosedMsg{})
	if cmd == nil {
		t.Fatal("expected a quit cmd on stream close")
	}
}

func TestWindowSizeMsgUpdatesDimensions(t *testing.T) {
	m := New("s1", nil, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	nm := next.(Model)
	if nm.width != 80 || nm.height != 24 {
		t.Fatalf("dimensions = %dx%d, want 80x24", nm.width, nm.height)
	}
}

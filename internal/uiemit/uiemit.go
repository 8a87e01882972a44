// Package uiemit defines the outbound UI event contract the supervisor
// emits to (external) front-ends, plus an in-process pub/sub implementation
// used by tests, the CLI's "attach" viewer, and as the backing fan-out for
// richer transports.
package uiemit

import "sync"

// Event names match the wire contract exactly.
const (
	EventChunk             = "chat:chunk"
	EventThinking          = "chat:thinking"
	EventToolUse           = "chat:tool_use"
	EventToolBlock         = "chat:tool_block"
	EventToolResult        = "chat:tool_result"
	EventPermissionDenied  = "chat:permission_denied"
	EventDone              = "chat:done"
	EventCancelled         = "chat:cancelled"
	EventError             = "chat:error"
)

// Envelope pairs an event name with its JSON-shaped payload, as delivered
// to every emitter implementation.
type Envelope struct {
	Name    string
	Payload any
}

// ChunkPayload backs chat:chunk.
type ChunkPayload struct {
	SessionID  string `json:"session_id"`
	WorktreeID string `json:"worktree_id"`
	Content    string `json:"content"`
}

// ThinkingPayload backs chat:thinking.
type ThinkingPayload struct {
	SessionID  string `json:"session_id"`
	WorktreeID string `json:"worktree_id"`
	Content    string `json:"content"`
}

// ToolUsePayload backs chat:tool_use.
type ToolUsePayload struct {
	SessionID       string `json:"session_id"`
	WorktreeID      string `json:"worktree_id"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	Input           any    `json:"input"`
	ParentToolUseID string `json:"parent_tool_use_id,omitempty"`
}

// ToolBlockPayload backs chat:tool_block.
type ToolBlockPayload struct {
	SessionID  string `json:"session_id"`
	WorktreeID string `json:"worktree_id"`
	ToolCallID string `json:"tool_call_id"`
}

// ToolResultPayload backs chat:tool_result.
type ToolResultPayload struct {
	SessionID  string `json:"session_id"`
	WorktreeID string `json:"worktree_id"`
	ToolUseID  string `json:"tool_use_id"`
	Output     string `json:"output"`
}

// PermissionDenial is one entry of PermissionDeniedPayload.Denials.
type PermissionDenial struct {
	ToolName  string `json:"tool_name"`
	ToolUseID string `json:"tool_use_id"`
	ToolInput any    `json:"tool_input"`
}

// PermissionDeniedPayload backs chat:permission_denied.
type PermissionDeniedPayload struct {
	SessionID  string             `json:"session_id"`
	WorktreeID string             `json:"worktree_id"`
	Denials    []PermissionDenial `json:"denials"`
}

// DonePayload backs chat:done.
type DonePayload struct {
	SessionID  string `json:"session_id"`
	WorktreeID string `json:"worktree_id"`
}

// CancelledPayload backs chat:cancelled.
type CancelledPayload struct {
	SessionID  string `json:"session_id"`
	WorktreeID string `json:"worktree_id"`
	UndoSend   bool   `json:"undo_send"`
}

// ErrorPayload backs chat:error.
type ErrorPayload struct {
	SessionID  string `json:"session_id"`
	WorktreeID string `json:"worktree_id"`
	Error      string `json:"error"`
}

// Emitter is the out-of-scope external collaborator's interface: something
// a supervisor can call to publish a named UI event without knowing how it
// reaches a front-end.
type Emitter interface {
	Emit(name string, payload any)
}

// InProcess is an in-memory pub/sub fan-out: each subscriber gets its own
// buffered channel of Envelopes, plus a bounded replay ring so a late
// subscriber can catch up on recent events before going live.
type InProcess struct {
	mu          sync.Mutex
	subs        map[int]chan Envelope
	nextSubID   int
	replay      []Envelope
	maxReplay   int
}

// NewInProcess returns an InProcess emitter retaining up to maxReplay
// recent events for newly attached subscribers.
func NewInProcess(maxReplay int) *InProcess {
	if maxReplay <= 0 {
		maxReplay = 4096
	}
	return &InProcess{subs: make(map[int]chan Envelope), maxReplay: maxReplay}
}

// Emit implements Emitter: it appends to the replay ring and fans out to
// every live subscriber without blocking (a full subscriber channel drops
// the event for that subscriber rather than stalling the run).
func (p *InProcess) Emit(name string, payload any) {
	env := Envelope{Name: name, Payload: payload}

	p.mu.Lock()
	p.replay = append(p.replay, env)
	if len(p.replay) > p.maxReplay {
		p.replay = p.replay[len(p.replay)-p.maxReplay:]
	}
	chans := make([]chan Envelope, 0, len(p.subs))
	for _, ch := range p.subs {
		chans = append(chans, ch)
	}
	p.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- env:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus the
// current replay buffer (oldest first) so the caller can seed state before
// consuming live events. unsubscribe must be called to release resources.
func (p *InProcess) Subscribe(buffer int) (ch <-chan Envelope, replayed []Envelope, unsubscribe func()) {
	if buffer <= 0 {
		buffer = 256
	}
	c := make(chan Envelope, buffer)

	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subs[id] = c
	replayed = append([]Envelope(nil), p.replay...)
	p.mu.Unlock()

	return c, replayed, func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

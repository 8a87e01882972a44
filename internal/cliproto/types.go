// Package cliproto models the JSON-event wire contract emitted by the
// external agent CLI on stdout: one top-level event per line, each carrying
// a thread item for the item.* variants. The schema evolves out of band, so
// every tagged union here keeps a silent "other" arm — an unrecognized type
// is preserved verbatim rather than rejected.
package cliproto

import "encoding/json"

// EventType is the top-level event discriminator.
type EventType string

const (
	EventThreadStarted  EventType = "thread.started"
	EventTurnStarted    EventType = "turn.started"
	EventTurnCompleted  EventType = "turn.completed"
	EventTurnFailed     EventType = "turn.failed"
	EventItemStarted    EventType = "item.started"
	EventItemUpdated    EventType = "item.updated"
	EventItemCompleted  EventType = "item.completed"
	EventError          EventType = "error"
	EventOther          EventType = ""
)

// Event is the decoded shape of a single NDJSON line from the CLI.
type Event struct {
	Type EventType

	ThreadID string // thread.started

	Usage *Usage // turn.completed

	ErrorMessage string // turn.failed, error

	Item *ThreadItem // item.started / item.updated / item.completed

	Raw json.RawMessage // exact bytes of the line, always populated
}

// Usage reports token accounting for a completed turn. Fields are
// non-decreasing within a single turn.
type Usage struct {
	InputTokens       int `json:"input_tokens"`
	OutputTokens      int `json:"output_tokens"`
	CacheReadTokens   int `json:"cache_read_input_tokens"`
	CacheCreateTokens int `json:"cache_creation_input_tokens"`
}

// ItemType discriminates the nested thread-item payloads carried by
// item.started/updated/completed events.
type ItemType string

const (
	ItemAgentMessage     ItemType = "agent_message"
	ItemReasoning        ItemType = "reasoning"
	ItemCommandExecution ItemType = "command_execution"
	ItemFileChange       ItemType = "file_change"
	ItemMcpToolCall      ItemType = "mcp_tool_call"
	ItemWebSearch        ItemType = "web_search"
	ItemTodoList         ItemType = "todo_list"
	ItemError            ItemType = "error"
	ItemOther            ItemType = ""
)

// ThreadItem is the tagged union of item payloads the CLI can emit nested
// inside an item.* event. The CLI re-emits the same Id with cumulative
// state on every update; only the fields relevant to Type are populated.
type ThreadItem struct {
	ID   string
	Type ItemType

	// AgentMessage, Reasoning
	Text string

	// CommandExecution
	Command          string
	AggregatedOutput string
	ExitCode         *int

	// FileChange
	Changes []FileChangeEntry

	// McpToolCall
	Server             string
	Tool               string
	Arguments          json.RawMessage
	StructuredContent  json.RawMessage
	ToolError          string

	// WebSearch
	Query string

	// TodoList
	Todos []TodoEntry

	// Error
	ErrorMessage string

	Raw json.RawMessage
}

// FileChangeEntry describes one file touched by a FileChange item.
type FileChangeEntry struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "add", "modify", "delete"
}

// TodoEntry is one row of a TodoList item snapshot.
type TodoEntry struct {
	Content    string `json:"content"`
	ActiveForm string `json:"active_form"`
	Status     string `json:"status"` // "pending", "in_progress", "completed"
}

// ContentBlock is one unit of the outgoing assistant message. Ordering is
// significant: reconstruction from a run log must reproduce the same
// sequence the live stream produced.
type ContentBlock struct {
	Kind       ContentBlockKind
	Text       string // Text, Thinking
	ToolCallID string // ToolUse
}

// ContentBlockKind distinguishes the three content block shapes.
type ContentBlockKind int

const (
	BlockText ContentBlockKind = iota
	BlockThinking
	BlockToolUse
)

// ToolCall is a unified representation of every tool-shaped thread item:
// command execution, file edits, MCP calls, web search, and todo lists.
// Unique by ID within a run; Output is last-writer-wins.
type ToolCall struct {
	ID             string
	Name           string
	Input          json.RawMessage
	Output         string
	HasOutput      bool
	ParentToolUseID string
}

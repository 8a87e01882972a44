// Package runlog implements the durable, crash-recoverable run log store:
// a per-run append-only NDJSON file with a metadata header, sibling input
// and stderr files, and session-level metadata tracking run status across
// supervisor restarts.
package runlog

import "time"

// Status is the total function of a Run's lifecycle events.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusCrashed   Status = "crashed"
	StatusResumable Status = "resumable"
)

// Mode mirrors argbuild.Mode as a string for storage, avoiding a storage
// dependency on the argument-building package.
type Mode string

const (
	ModePlan  Mode = "plan"
	ModeBuild Mode = "build"
	ModeYolo  Mode = "yolo"
)

// Session is a conversation across multiple runs, mapping to one directory.
type Session struct {
	ID             string `json:"id"`
	WorktreeID     string `json:"worktree_id"`
	Name           string `json:"name"`
	Order          int    `json:"order"`
	Agent          string `json:"agent"`
	ResumeTokens   map[string]string `json:"resume_tokens,omitempty"` // agent tag -> resume token
}

// Usage reports token accounting for a run. Non-decreasing within a turn.
type Usage struct {
	InputTokens       int     `json:"input_tokens"`
	OutputTokens      int     `json:"output_tokens"`
	CacheReadTokens   int     `json:"cache_read_tokens"`
	CacheCreateTokens int     `json:"cache_create_tokens"`
	CostUSD           float64 `json:"cost_usd"`
}

// RunMeta is the persisted record of a single Run, held inside the session
// metadata file. The supervisors write it once, when the run reaches a
// terminal state; no entry exists while the run is still live. Every
// terminal record, crashed ones included, gets an assistant_message_id so
// the UI can show a placeholder for it.
type RunMeta struct {
	RunID             string     `json:"run_id"`
	UserMessageID     string     `json:"user_message_id"`
	UserText          string     `json:"user_text"`
	Mode              Mode       `json:"mode"`
	Model             string     `json:"model"`
	ReasoningLevel    string     `json:"reasoning_level,omitempty"`
	Agent             string     `json:"agent"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	Status            Status     `json:"status"`
	AssistantMessageID string    `json:"assistant_message_id"`
	PID               int        `json:"pid,omitempty"`
	Usage             Usage      `json:"usage"`
	Cancelled         bool       `json:"cancelled"`
	Recovered         bool       `json:"recovered"`
	ResumeToken       string     `json:"resume_token,omitempty"`
}

// headerSentinelKey marks the first line of a run log as the metadata
// header, distinguishing it from a verbatim CLI event line. Both the
// supervisor and the replayer must skip any line containing this key.
const headerSentinelKey = "__agentsup_run_header__"

// Header is the first line written to a run log file.
type Header struct {
	Sentinel  bool      `json:"__agentsup_run_header__"`
	RunID     string     `json:"run_id"`
	SessionID string     `json:"session_id"`
	Agent     string     `json:"agent"`
	Mode      Mode       `json:"mode"`
	StartedAt time.Time  `json:"started_at"`
}

// PlaceholderText substitutes for a crashed run's reconstructed message
// when the Item Folder produced no content at all.
const PlaceholderText = "[no response recorded]"

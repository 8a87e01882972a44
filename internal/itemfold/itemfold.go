// Package itemfold translates streamed thread items into unified content
// blocks and tool-call entries, deriving text deltas per item id so the
// same folding logic can drive both a live event stream and replay of a
// stored run log to an identical final message.
package itemfold

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentsup/agentsup/internal/cliproto"
)

// FallbackMode selects the behavior when an agent_message/reasoning item's
// new text is not an extension of the previously seen text — a rare case
// the CLI occasionally produces. This is an explicit, caller-chosen policy
// rather than a guess: see the design notes on non-suffix updates.
type FallbackMode int

const (
	// FallbackReplace discards the prior text for that item id and treats
	// the new text as the sole content for it, avoiding duplicated output.
	// This is the default.
	FallbackReplace FallbackMode = iota
	// FallbackAppend emits the entire new text as an additional block,
	// matching the original implementation's literal (duplicating) behavior.
	FallbackAppend
)

// Delta is one incremental unit of output produced by folding an item.
// Exactly one of the Kind-specific fields is meaningful.
type Delta struct {
	Kind DeltaKind

	// DeltaChunk / DeltaThinkingChunk
	Text string

	// DeltaToolUse
	ToolCall cliproto.ToolCall

	// DeltaToolResult
	ToolCallID string
	Output     string
}

// DeltaKind discriminates the Delta payload.
type DeltaKind int

const (
	DeltaChunk DeltaKind = iota
	DeltaThinkingChunk
	DeltaToolUse
	DeltaToolResult
)

// Folder holds the per-run working state used to fold a stream of thread
// items into content blocks and tool calls. Not safe for concurrent use;
// one Folder belongs to exactly one run.
type Folder struct {
	fallback FallbackMode

	seenText map[string]string // item id -> last observed cumulative text
	isThink  map[string]bool   // item id -> true if item is a Reasoning item

	tools   map[string]*cliproto.ToolCall // tool id -> tool call
	toolSeq []string                      // insertion order, for replay determinism

	blocks []cliproto.ContentBlock

	fileChangeIndex map[string]int            // item id -> next synthetic index
	todoSeen        map[string]map[string]int // item id -> snapshot hash -> seq emitted
	todoSeq         map[string]int            // item id -> next seq
}

// New returns a Folder with empty state.
func New(fallback FallbackMode) *Folder {
	return &Folder{
		fallback:        fallback,
		seenText:        make(map[string]string),
		isThink:         make(map[string]bool),
		tools:           make(map[string]*cliproto.ToolCall),
		fileChangeIndex: make(map[string]int),
		todoSeen:        make(map[string]map[string]int),
		todoSeq:         make(map[string]int),
	}
}

// Blocks returns the content blocks accumulated so far, in emission order.
func (f *Folder) Blocks() []cliproto.ContentBlock {
	return append([]cliproto.ContentBlock(nil), f.blocks...)
}

// ToolCalls returns the tool calls accumulated so far, in first-creation
// order.
func (f *Folder) ToolCalls() []cliproto.ToolCall {
	out := make([]cliproto.ToolCall, 0, len(f.toolSeq))
	for _, id := range f.toolSeq {
		out = append(out, *f.tools[id])
	}
	return out
}

// Text returns the concatenation of all Text-kind content blocks.
func (f *Folder) Text() string {
	var b strings.Builder
	for _, blk := range f.blocks {
		if blk.Kind == cliproto.BlockText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// Apply folds one thread item (as carried by an item.started/updated/
// completed event) and returns the deltas it produces, in emission order.
func (f *Folder) Apply(item cliproto.ThreadItem) ([]Delta, error) {
	switch item.Type {
	case cliproto.ItemAgentMessage:
		return f.applyText(item.ID, item.Text, false), nil
	case cliproto.ItemReasoning:
		return f.applyText(item.ID, item.Text, true), nil
	case cliproto.ItemCommandExecution:
		return f.applyCommandExecution(item), nil
	case cliproto.ItemFileChange:
		return f.applyFileChange(item), nil
	case cliproto.ItemMcpToolCall:
		return f.applyMcpToolCall(item), nil
	case cliproto.ItemWebSearch:
		return f.applyWebSearch(item), nil
	case cliproto.ItemTodoList:
		return f.applyTodoList(item)
	case cliproto.ItemError:
		return nil, fmt.Errorf("itemfold: item %s reported error: %s", item.ID, item.ErrorMessage)
	default:
		return nil, nil // unknown item type: tolerated, no output
	}
}

// applyText implements delta derivation for agent_message/reasoning items:
// the CLI re-emits cumulative text on every update, so only the unseen
// suffix is surfaced as a delta.
func (f *Folder) applyText(id, newText string, thinking bool) []Delta {
	f.isThink[id] = thinking
	old, ok := f.seenText[id]
	f.seenText[id] = newText

	if !ok {
		if newText == "" {
			return nil
		}
		f.appendBlock(newText, thinking)
		return []Delta{textDelta(newText, thinking)}
	}

	if strings.HasPrefix(newText, old) {
		suffix := newText[len(old):]
		if suffix == "" {
			return nil
		}
		f.appendBlock(suffix, thinking)
		return []Delta{textDelta(suffix, thinking)}
	}

	// Non-suffix update: the rare fallback case.
	switch f.fallback {
	case FallbackAppend:
		f.appendBlock(newText, thinking)
		return []Delta{textDelta(newText, thinking)}
	default: // FallbackReplace
		f.replaceLastBlock(newText, thinking)
		return []Delta{textDelta(newText, thinking)}
	}
}

func textDelta(text string, thinking bool) Delta {
	if thinking {
		return Delta{Kind: DeltaThinkingChunk, Text: text}
	}
	return Delta{Kind: DeltaChunk, Text: text}
}

func (f *Folder) appendBlock(text string, thinking bool) {
	kind := cliproto.BlockText
	if thinking {
		kind = cliproto.BlockThinking
	}
	f.blocks = append(f.blocks, cliproto.ContentBlock{Kind: kind, Text: text})
}

// replaceLastBlock overwrites the most recent block of the matching kind
// with newText, or appends one if none exists yet — used by FallbackReplace
// to avoid duplicating text for a non-suffix update.
func (f *Folder) replaceLastBlock(newText string, thinking bool) {
	kind := cliproto.BlockText
	if thinking {
		kind = cliproto.BlockThinking
	}
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if f.blocks[i].Kind == kind {
			f.blocks[i].Text = newText
			return
		}
	}
	f.appendBlock(newText, thinking)
}

// ensureToolCall creates a tool call if it doesn't already exist (idempotent
// by id) and returns it plus whether it was newly created.
func (f *Folder) ensureToolCall(id, name string, input json.RawMessage, parentToolUseID string) (*cliproto.ToolCall, bool) {
	if tc, ok := f.tools[id]; ok {
		return tc, false
	}
	tc := &cliproto.ToolCall{ID: id, Name: name, Input: input, ParentToolUseID: parentToolUseID}
	f.tools[id] = tc
	f.toolSeq = append(f.toolSeq, id)
	return tc, true
}

func (f *Folder) setToolOutput(id, output string) {
	if tc, ok := f.tools[id]; ok {
		tc.Output = output
		tc.HasOutput = true
	}
}

func (f *Folder) applyCommandExecution(item cliproto.ThreadItem) []Delta {
	input, _ := json.Marshal(map[string]string{"command": item.Command})
	var deltas []Delta
	tc, created := f.ensureToolCall(item.ID, "Bash", input, "")
	if created {
		f.blocks = append(f.blocks, cliproto.ContentBlock{Kind: cliproto.BlockToolUse, ToolCallID: item.ID})
		deltas = append(deltas, Delta{Kind: DeltaToolUse, ToolCall: *tc})
	}
	if item.AggregatedOutput != "" {
		f.setToolOutput(item.ID, item.AggregatedOutput)
		deltas = append(deltas, Delta{Kind: DeltaToolResult, ToolCallID: item.ID, Output: item.AggregatedOutput})
	}
	return deltas
}

func (f *Folder) applyFileChange(item cliproto.ThreadItem) []Delta {
	var deltas []Delta
	if len(item.Changes) <= 1 {
		kind, path := "", ""
		if len(item.Changes) == 1 {
			kind, path = item.Changes[0].Kind, item.Changes[0].Path
		}
		input, _ := json.Marshal(map[string]string{"file_path": path, "kind": kind})
		if tc, created := f.ensureToolCall(item.ID, "Edit", input, ""); created {
			f.blocks = append(f.blocks, cliproto.ContentBlock{Kind: cliproto.BlockToolUse, ToolCallID: item.ID})
			deltas = append(deltas, Delta{Kind: DeltaToolUse, ToolCall: *tc})
		}
		return deltas
	}

	// Multiple changes: one synthetic tool call per change, starting at the
	// next un-emitted index so repeated updates to this item don't re-create
	// tool calls already created on a prior update.
	start := f.fileChangeIndex[item.ID]
	for i := start; i < len(item.Changes); i++ {
		ch := item.Changes[i]
		syntheticID := fmt.Sprintf("%s:%d", item.ID, i)
		input, _ := json.Marshal(map[string]string{"file_path": ch.Path, "kind": ch.Kind})
		if tc, created := f.ensureToolCall(syntheticID, "Edit", input, ""); created {
			f.blocks = append(f.blocks, cliproto.ContentBlock{Kind: cliproto.BlockToolUse, ToolCallID: syntheticID})
			deltas = append(deltas, Delta{Kind: DeltaToolUse, ToolCall: *tc})
		}
	}
	f.fileChangeIndex[item.ID] = len(item.Changes)
	return deltas
}

func (f *Folder) applyMcpToolCall(item cliproto.ThreadItem) []Delta {
	name := fmt.Sprintf("MCP:%s:%s", item.Server, item.Tool)
	var deltas []Delta
	tc, created := f.ensureToolCall(item.ID, name, item.Arguments, "")
	if created {
		f.blocks = append(f.blocks, cliproto.ContentBlock{Kind: cliproto.BlockToolUse, ToolCallID: item.ID})
		deltas = append(deltas, Delta{Kind: DeltaToolUse, ToolCall: *tc})
	}

	switch {
	case item.ToolError != "":
		output := "error: " + item.ToolError
		f.setToolOutput(item.ID, output)
		deltas = append(deltas, Delta{Kind: DeltaToolResult, ToolCallID: item.ID, Output: output})
	case len(item.StructuredContent) > 0:
		var pretty bytesPretty
		output := pretty.render(item.StructuredContent)
		f.setToolOutput(item.ID, output)
		deltas = append(deltas, Delta{Kind: DeltaToolResult, ToolCallID: item.ID, Output: output})
	}
	return deltas
}

type bytesPretty struct{}

func (bytesPretty) render(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func (f *Folder) applyWebSearch(item cliproto.ThreadItem) []Delta {
	input, _ := json.Marshal(map[string]string{"query": item.Query})
	var deltas []Delta
	if tc, created := f.ensureToolCall(item.ID, "WebSearch", input, ""); created {
		f.blocks = append(f.blocks, cliproto.ContentBlock{Kind: cliproto.BlockToolUse, ToolCallID: item.ID})
		deltas = append(deltas, Delta{Kind: DeltaToolUse, ToolCall: *tc})
	}
	return deltas
}

// applyTodoList keys by (item id, snapshot hash): a distinct snapshot gets a
// fresh synthetic tool id "<item_id>:<seq>"; an already-seen exact snapshot
// is dropped, since the CLI reuses the item id across unrelated updates.
func (f *Folder) applyTodoList(item cliproto.ThreadItem) ([]Delta, error) {
	snapshot, err := json.Marshal(item.Todos)
	if err != nil {
		return nil, fmt.Errorf("itemfold: marshal todo snapshot for %s: %w", item.ID, err)
	}
	sum := sha256.Sum256(snapshot)
	hash := hex.EncodeToString(sum[:])

	seen, ok := f.todoSeen[item.ID]
	if !ok {
		seen = make(map[string]int)
		f.todoSeen[item.ID] = seen
	}
	if _, dup := seen[hash]; dup {
		return nil, nil
	}

	seq := f.todoSeq[item.ID] + 1
	f.todoSeq[item.ID] = seq
	seen[hash] = seq

	syntheticID := fmt.Sprintf("%s:%d", item.ID, seq)
	todos := make([]map[string]string, 0, len(item.Todos))
	for _, t := range item.Todos {
		todos = append(todos, map[string]string{
			"content":     t.Content,
			"activeForm":  t.ActiveForm,
			"status":      t.Status,
		})
	}
	input, err := json.Marshal(map[string]any{"todos": todos})
	if err != nil {
		return nil, fmt.Errorf("itemfold: marshal TodoWrite input: %w", err)
	}

	tc, created := f.ensureToolCall(syntheticID, "TodoWrite", input, "")
	if !created {
		return nil, nil
	}
	f.blocks = append(f.blocks, cliproto.ContentBlock{Kind: cliproto.BlockToolUse, ToolCallID: syntheticID})
	return []Delta{{Kind: DeltaToolUse, ToolCall: *tc}}, nil
}

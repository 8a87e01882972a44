package cliproto

import (
	"encoding/json"
	"fmt"
)

// wireEvent mirrors the top-level JSON shape before it is folded into Event.
type wireEvent struct {
	Type     string          `json:"type"`
	ThreadID string          `json:"thread_id"`
	Usage    *Usage          `json:"usage"`
	Error    *wireErrorField `json:"error"`
	Message  string          `json:"message"`
	Item     *wireItem       `json:"item"`
}

type wireErrorField struct {
	Message string `json:"message"`
}

type wireItem struct {
	ID               string            `json:"id"`
	Type             string            `json:"item_type"`
	Text             string            `json:"text"`
	Command          string            `json:"command"`
	AggregatedOutput string            `json:"aggregated_output"`
	ExitCode         *int              `json:"exit_code"`
	Changes          []FileChangeEntry `json:"changes"`
	Server           string            `json:"server"`
	Tool             string            `json:"tool"`
	Arguments        json.RawMessage   `json:"arguments"`
	StructuredContent json.RawMessage  `json:"structured_content"`
	ToolError        string            `json:"error"`
	Query            string            `json:"query"`
	Todos            []TodoEntry       `json:"todos"`
	Message          string            `json:"message"`
}

// ParseLine decodes one NDJSON line into an Event. A line that does not
// match any known top-level type still decodes successfully as EventOther
// — unknown events are tolerated, never rejected, per the forward-
// compatibility requirement of the wire contract.
func ParseLine(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{}, fmt.Errorf("cliproto: decode line: %w", err)
	}

	ev := Event{
		Type: EventType(w.Type),
		Raw:  append(json.RawMessage(nil), line...),
	}

	switch ev.Type {
	case EventThreadStarted:
		ev.ThreadID = w.ThreadID
	case EventTurnStarted:
		// No payload beyond the type.
	case EventTurnCompleted:
		ev.Usage = w.Usage
	case EventTurnFailed:
		ev.ErrorMessage = errMessage(w)
	case EventError:
		ev.ErrorMessage = errMessage(w)
	case EventItemStarted, EventItemUpdated, EventItemCompleted:
		if w.Item != nil {
			item, err := parseItem(w.Item)
			if err != nil {
				return Event{}, err
			}
			ev.Item = &item
		}
	default:
		// EventOther and any unrecognized future type: keep Raw only.
		ev.Type = EventOther
	}

	return ev, nil
}

func errMessage(w wireEvent) string {
	if w.Error != nil && w.Error.Message != "" {
		return w.Error.Message
	}
	return w.Message
}

func parseItem(w *wireItem) (ThreadItem, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return ThreadItem{}, fmt.Errorf("cliproto: re-marshal item: %w", err)
	}

	item := ThreadItem{
		ID:  w.ID,
		Raw: raw,
	}

	switch ItemType(w.Type) {
	case ItemAgentMessage, ItemReasoning:
		item.Type = ItemType(w.Type)
		item.Text = w.Text
	case ItemCommandExecution:
		item.Type = ItemCommandExecution
		item.Command = w.Command
		item.AggregatedOutput = w.AggregatedOutput
		item.ExitCode = w.ExitCode
	case ItemFileChange:
		item.Type = ItemFileChange
		item.Changes = w.Changes
	case ItemMcpToolCall:
		item.Type = ItemMcpToolCall
		item.Server = w.Server
		item.Tool = w.Tool
		item.Arguments = w.Arguments
		item.StructuredContent = w.StructuredContent
		item.ToolError = w.ToolError
	case ItemWebSearch:
		item.Type = ItemWebSearch
		item.Query = w.Query
	case ItemTodoList:
		item.Type = ItemTodoList
		item.Todos = w.Todos
	case ItemError:
		item.Type = ItemError
		item.ErrorMessage = w.Message
	default:
		item.Type = ItemOther
	}

	return item, nil
}

package cliproto

import "testing"

func TestParseLineThreadStarted(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"thread.started","thread_id":"019c0af8"}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.Type != EventThreadStarted {
		t.Fatalf("Type = %v, want %v", ev.Type, EventThreadStarted)
	}
	if ev.ThreadID != "019c0af8" {
		t.Fatalf("ThreadID = %q", ev.ThreadID)
	}
}

func TestParseLineTurnCompletedUsage(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"turn.completed","usage":{"input_tokens":10,"output_tokens":5}}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.Usage == nil || ev.Usage.InputTokens != 10 || ev.Usage.OutputTokens != 5 {
		t.Fatalf("Usage = %+v", ev.Usage)
	}
}

func TestParseLineTurnFailed(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"turn.failed","error":{"message":"boom"}}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.ErrorMessage != "boom" {
		t.Fatalf("ErrorMessage = %q", ev.ErrorMessage)
	}
}

func TestParseLineItemAgentMessage(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"item.updated","item":{"id":"m1","item_type":"agent_message","text":"Hello"}}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.Item == nil {
		t.Fatal("Item = nil")
	}
	if ev.Item.Type != ItemAgentMessage || ev.Item.Text != "Hello" || ev.Item.ID != "m1" {
		t.Fatalf("Item = %+v", ev.Item)
	}
}

func TestParseLineCommandExecution(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"item.completed","item":{"id":"c1","item_type":"command_execution","command":"ls -la","aggregated_output":"file.go\n","exit_code":0}}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.Item.Command != "ls -la" || ev.Item.AggregatedOutput != "file.go\n" {
		t.Fatalf("Item = %+v", ev.Item)
	}
	if ev.Item.ExitCode == nil || *ev.Item.ExitCode != 0 {
		t.Fatalf("ExitCode = %v", ev.Item.ExitCode)
	}
}

func TestParseLineUnknownTypeTolerated(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"future.thing","whatever":true}`))
	if err != nil {
		t.Fatalf("ParseLine returned error for unknown type: %v", err)
	}
	if ev.Type != EventOther {
		t.Fatalf("Type = %v, want EventOther", ev.Type)
	}
	if len(ev.Raw) == 0 {
		t.Fatal("Raw not preserved for unknown event")
	}
}

func TestParseLineUnknownItemTypeTolerated(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"item.started","item":{"id":"x1","item_type":"something_new"}}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.Item.Type != ItemOther {
		t.Fatalf("Item.Type = %v, want ItemOther", ev.Item.Type)
	}
	if ev.Item.ID != "x1" {
		t.Fatalf("Item.ID = %q", ev.Item.ID)
	}
}

func TestParseLineMalformedJSONErrors(t *testing.T) {
	if _, err := ParseLine([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestParseLineTodoList(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"item.updated","item":{"id":"t1","item_type":"todo_list","todos":[{"content":"write tests","active_form":"Writing tests","status":"in_progress"}]}}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if len(ev.Item.Todos) != 1 || ev.Item.Todos[0].Content != "write tests" {
		t.Fatalf("Todos = %+v", ev.Item.Todos)
	}
}

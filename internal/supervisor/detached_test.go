package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/agentsup/agentsup/internal/argbuild"
	"github.com/agentsup/agentsup/internal/itemfold"
	"github.com/agentsup/agentsup/internal/registry"
	"github.com/agentsup/agentsup/internal/runlog"
	"github.com/agentsup/agentsup/internal/uiemit"
)

// recorder is a minimal Emitter that records every emitted envelope.
type recorder struct {
	mu    sync.Mutex
	names []string
	last  map[string]any
}

func newRecorder() *recorder {
	return &recorder{last: make(map[string]any)}
}

func (r *recorder) Emit(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.last[name] = payload
}

func (r *recorder) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.names {
		if n == name {
			return true
		}
	}
	return false
}

// installFakeBinary writes an executable shell script named "codex" to a
// fresh directory and prepends it to PATH for the duration of the test.
func installFakeBinary(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell binaries require a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "codex")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRunDetachedHappyPath(t *testing.T) {
	installFakeBinary(t, `
cat <<'EOF'
{"type":"thread.started","thread_id":"t1"}
{"type":"item.started","item":{"id":"m1","item_type":"agent_message","text":"Hello"}}
{"type":"turn.completed","usage":{"input_tokens":3,"output_tokens":5}}
EOF
`)

	dir := t.TempDir()
	store, err := runlog.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rec := newRecorder()
	proc := registry.NewProcess()

	err = RunDetached(DetachedRun{
		SessionID:  "s1",
		WorktreeID: "w1",
		RunID:      "r1",
		Params: argbuild.Params{
			SessionID:  "s1",
			WorktreeID: "w1",
			AgentTag:   "codex",
			Mode:       argbuild.ModePlan,
			WorkingDir: t.TempDir(),
			Prompt:     "do the thing",
		},
		Store:    store,
		Process:  proc,
		Emit:     rec,
		Fallback: itemfold.FallbackReplace,
	})
	if err != nil {
		t.Fatalf("RunDetached: %v", err)
	}

	if !rec.has(uiemit.EventChunk) {
		t.Fatalf("expected a chat:chunk event, got %v", rec.names)
	}
	if !rec.has(uiemit.EventDone) {
		t.Fatalf("expected a chat:done event, got %v", rec.names)
	}

	meta, err := store.LoadMeta("s1")
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	run, ok := meta.Runs["r1"]
	if !ok {
		t.Fatal("expected run r1 to be recorded")
	}
	if run.Status != runlog.StatusCompleted {
		t.Fatalf("Status = %v, want completed", run.Status)
	}
	if run.Usage.InputTokens != 3 || run.Usage.OutputTokens != 5 {
		t.Fatalf("Usage = %+v", run.Usage)
	}
	if run.ResumeToken != "t1" {
		t.Fatalf("ResumeToken = %q, want t1 (captured from thread.started)", run.ResumeToken)
	}
	if meta.Session.ResumeTokens["codex"] != "t1" {
		t.Fatalf("Session.ResumeTokens[codex] = %q, want t1", meta.Session.ResumeTokens["codex"])
	}
	if proc.IsRunning("s1") {
		t.Fatal("expected PID to be unregistered on completion")
	}
}

func TestRunDetachedMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	dir := t.TempDir()
	store, _ := runlog.Open(dir)
	rec := newRecorder()
	proc := registry.NewProcess()

	err := RunDetached(DetachedRun{
		SessionID: "s1",
		RunID:     "r1",
		Params: argbuild.Params{
			SessionID:  "s1",
			AgentTag:   "codex",
			WorkingDir: t.TempDir(),
		},
		Store:    store,
		Process:  proc,
		Emit:     rec,
		Fallback: itemfold.FallbackReplace,
	})
	if err == nil {
		t.Fatal("expected error resolving a missing binary")
	}
	if !rec.has(uiemit.EventError) {
		t.Fatalf("expected a chat:error event, got %v", rec.names)
	}
}

func TestRunDetachedCrashBeforeOutput(t *testing.T) {
	installFakeBinary(t, `exit 1`)

	dir := t.TempDir()
	store, _ := runlog.Open(dir)
	rec := newRecorder()
	proc := registry.NewProcess()

	err := RunDetached(DetachedRun{
		SessionID: "s1",
		RunID:     "r1",
		Params: argbuild.Params{
			SessionID:  "s1",
			AgentTag:   "codex",
			WorkingDir: t.TempDir(),
		},
		Store:    store,
		Process:  proc,
		Emit:     rec,
		Fallback: itemfold.FallbackReplace,
	})
	if err != nil {
		t.Fatalf("RunDetached: %v", err)
	}

	meta, _ := store.LoadMeta("s1")
	run := meta.Runs["r1"]
	if run.Status != runlog.StatusCrashed {
		t.Fatalf("Status = %v, want crashed", run.Status)
	}
	if !rec.has(uiemit.EventError) {
		t.Fatalf("expected a chat:error event, got %v", rec.names)
	}
}

// TestRunDetachedExternalCancellation is scenario-style: the caller removes
// the session from the registry mid-run (as cancellation does), and the
// supervisor must observe that on its next poll and stop without waiting
// for the child's own completion.
func TestRunDetachedExternalCancellation(t *testing.T) {
	installFakeBinary(t, `sleep 5`)

	dir := t.TempDir()
	store, _ := runlog.Open(dir)
	rec := newRecorder()
	proc := registry.NewProcess()

	done := make(chan error, 1)
	go func() {
		done <- RunDetached(DetachedRun{
			SessionID: "s1",
			RunID:     "r1",
			Params: argbuild.Params{
				SessionID:  "s1",
				AgentTag:   "codex",
				WorkingDir: t.TempDir(),
			},
			Store:    store,
			Process:  proc,
			Emit:     rec,
			Fallback: itemfold.FallbackReplace,
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !proc.IsRunning("s1") {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for PID registration")
		}
		time.Sleep(10 * time.Millisecond)
	}
	proc.Unregister("s1")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunDetached: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for RunDetached to observe cancellation")
	}

	if !rec.has(uiemit.EventCancelled) {
		t.Fatalf("expected a chat:cancelled event, got %v", rec.names)
	}
}

func TestModeStringRoundTrip(t *testing.T) {
	cases := map[argbuild.Mode]string{
		argbuild.ModePlan:  "plan",
		argbuild.ModeBuild: "build",
		argbuild.ModeYolo:  "yolo",
	}
	for mode, want := range cases {
		if got := modeString(mode); got != want {
			t.Fatalf("modeString(%v) = %q, want %q", mode, got, want)
		}
	}
}

func TestCrashMessageDistinguishesNoOutput(t *testing.T) {
	noOutput := crashMessage(false, "stderr tail")
	withOutput := crashMessage(true, "stderr tail")
	if noOutput == withOutput {
		t.Fatal("expected distinct crash messages for no-output vs crashed-after-output")
	}
	if got := fmt.Sprintf("%s", noOutput); got == "" {
		t.Fatal("expected non-empty crash message")
	}
}

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/agentsup/agentsup/internal/argbuild"
	"github.com/agentsup/agentsup/internal/cliproto"
	"github.com/agentsup/agentsup/internal/debug"
	"github.com/agentsup/agentsup/internal/hexid"
	"github.com/agentsup/agentsup/internal/itemfold"
	"github.com/agentsup/agentsup/internal/registry"
	"github.com/agentsup/agentsup/internal/runlog"
	"github.com/agentsup/agentsup/internal/tailer"
	"github.com/agentsup/agentsup/internal/uiemit"
)

// DetachedRun describes one invocation of the Detached Supervisor.
type DetachedRun struct {
	SessionID  string
	WorktreeID string
	RunID      string
	Params     argbuild.Params
	Store      *runlog.Store
	Process    *registry.Process
	Emit       uiemit.Emitter
	Fallback   itemfold.FallbackMode
}

// RunDetached spawns the CLI fully detached, stdio bound to the run log
// store's files, and blocks until the run reaches a terminal state. It is
// meant to be called from its own goroutine; the caller observes progress
// only through Emit and the run log store.
func RunDetached(run DetachedRun) error {
	binary, err := resolveBinary(run.Params.AgentTag)
	if err != nil {
		run.Emit.Emit(uiemit.EventError, uiemit.ErrorPayload{
			SessionID: run.SessionID, WorktreeID: run.WorktreeID, Error: err.Error(),
		})
		return err
	}

	run.Params.Style = argbuild.StyleDetached
	var argv []string
	var env map[string]string
	if run.Params.AgentTag == "codex" {
		argv, env = argbuild.BuildCodex(run.Params)
	} else {
		argv, env = argbuild.BuildClaude(run.Params)
	}

	header := runlog.Header{
		RunID:     run.RunID,
		SessionID: run.SessionID,
		Agent:     run.Params.AgentTag,
		Mode:      runlog.Mode(modeString(run.Params.Mode)),
		StartedAt: time.Now(),
	}
	if err := run.Store.CreateRunLog(run.SessionID, header, run.Params.Prompt); err != nil {
		return fmt.Errorf("supervisor: create run log: %w", err)
	}

	logPath := run.Store.RunLogPath(run.SessionID, run.RunID)
	stdoutFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("supervisor: open run log for append: %w", err)
	}
	defer stdoutFile.Close()

	stderrFile, err := os.Create(run.Store.StderrPath(run.SessionID, run.RunID))
	if err != nil {
		return fmt.Errorf("supervisor: create stderr log: %w", err)
	}
	defer stderrFile.Close()

	stdinFile, err := os.Open(run.Store.InputPath(run.SessionID, run.RunID))
	if err != nil {
		return fmt.Errorf("supervisor: open input file: %w", err)
	}
	defer stdinFile.Close()

	cmd := exec.Command(binary, argv...)
	cmd.Dir = run.Params.WorkingDir
	cmd.Stdin = stdinFile
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	setpgid(cmd)

	if err := cmd.Start(); err != nil {
		debug.LogKV("supervisor", "detached start failed", "session", run.SessionID, "err", err.Error())
		run.Emit.Emit(uiemit.EventError, uiemit.ErrorPayload{
			SessionID: run.SessionID, WorktreeID: run.WorktreeID, Error: err.Error(),
		})
		return fmt.Errorf("supervisor: start %s: %w", binary, err)
	}

	pid := cmd.Process.Pid
	run.Process.Register(run.SessionID, pid)
	defer run.Process.Unregister(run.SessionID)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	t, err := tailer.NewFromStart(logPath)
	if err != nil {
		killTree(pid, syscall.SIGKILL)
		<-waitErr
		return fmt.Errorf("supervisor: open tailer: %w", err)
	}
	defer t.Close()

	folder := itemfold.New(run.Fallback)

	status, usage, resumeToken, assistantMessageID := pollLoop(pollLoopArgs{
		sessionID:  run.SessionID,
		worktreeID: run.WorktreeID,
		pid:        pid,
		store:      run.Store,
		process:    run.Process,
		emit:       run.Emit,
		tailer:     t,
		folder:     folder,
		waitErr:    waitErr,
		stderrPath: run.Store.StderrPath(run.SessionID, run.RunID),
	})

	endedAt := time.Now()
	_ = run.Store.MutateMeta(run.SessionID, func(m *runlog.SessionMeta) error {
		rm, ok := m.Runs[run.RunID]
		if !ok {
			rm = &runlog.RunMeta{RunID: run.RunID}
			m.Runs[run.RunID] = rm
		}
		rm.Status = status
		rm.EndedAt = &endedAt
		rm.Usage = usage
		rm.ResumeToken = resumeToken
		if rm.AssistantMessageID == "" {
			rm.AssistantMessageID = assistantMessageID
		}
		if resumeToken != "" {
			if m.Session.ResumeTokens == nil {
				m.Session.ResumeTokens = make(map[string]string)
			}
			m.Session.ResumeTokens[run.Params.AgentTag] = resumeToken
		}
		return nil
	})

	return nil
}

func modeString(m argbuild.Mode) string {
	switch m {
	case argbuild.ModePlan:
		return "plan"
	case argbuild.ModeYolo:
		return "yolo"
	default:
		return "build"
	}
}

type pollLoopArgs struct {
	sessionID  string
	worktreeID string
	pid        int
	store      *runlog.Store
	process    *registry.Process
	emit       uiemit.Emitter
	tailer     *tailer.Tailer
	folder     *itemfold.Folder
	waitErr    chan error
	stderrPath string
}

// pollLoop runs the Detached Supervisor's poll loop: read lines from the
// tailer, parse events, fold items, emit UI events, and enforce the startup
// and dead-process timeouts. Returns the terminal status to persist.
func pollLoop(a pollLoopArgs) (status runlog.Status, usage runlog.Usage, resumeToken, assistantMessageID string) {
	assistantMessageID = hexid.New()
	start := time.Now()
	sawJSON := false
	var lastOutput time.Time
	processExited := false
	var exitedAt time.Time

	for {
		lines, err := a.tailer.Poll()
		if err != nil {
			debug.LogKV("supervisor", "tailer poll error", "session", a.sessionID, "err", err.Error())
		}

		for _, line := range lines {
			if runlog.IsHeaderLine(line) || line == "" {
				continue
			}
			ev, perr := cliproto.ParseLine([]byte(line))
			if perr != nil {
				debug.LogKV("supervisor", "parse error", "session", a.sessionID, "err", perr.Error())
				continue
			}
			sawJSON = true
			lastOutput = time.Now()

			switch ev.Type {
			case cliproto.EventThreadStarted:
				if ev.ThreadID != "" {
					resumeToken = ev.ThreadID
				}
			case cliproto.EventTurnCompleted:
				if ev.Usage != nil {
					usage = runlog.Usage{
						InputTokens:       ev.Usage.InputTokens,
						OutputTokens:      ev.Usage.OutputTokens,
						CacheReadTokens:   ev.Usage.CacheReadTokens,
						CacheCreateTokens: ev.Usage.CacheCreateTokens,
					}
				}
				a.process.Unregister(a.sessionID)
				a.emit.Emit(uiemit.EventDone, uiemit.DonePayload{SessionID: a.sessionID, WorktreeID: a.worktreeID})
				return runlog.StatusCompleted, usage, resumeToken, assistantMessageID
			case cliproto.EventTurnFailed:
				a.emit.Emit(uiemit.EventError, uiemit.ErrorPayload{
					SessionID: a.sessionID, WorktreeID: a.worktreeID, Error: ev.ErrorMessage,
				})
				return runlog.StatusCrashed, usage, resumeToken, assistantMessageID
			case cliproto.EventError:
				a.emit.Emit(uiemit.EventError, uiemit.ErrorPayload{
					SessionID: a.sessionID, WorktreeID: a.worktreeID, Error: ev.ErrorMessage,
				})
			}

			if ev.Item != nil {
				emitItemDeltas(a, ev.Item)
			}
		}

		if !a.process.IsRunning(a.sessionID) {
			// Cancelled: stop tailing; the child is left to finish on its own.
			status := cancelledStatus(sawJSON)
			a.emit.Emit(uiemit.EventCancelled, uiemit.CancelledPayload{SessionID: a.sessionID, WorktreeID: a.worktreeID})
			return status, usage, resumeToken, assistantMessageID
		}

		select {
		case err := <-a.waitErr:
			_ = err
			processExited = true
			exitedAt = time.Now()
		default:
		}

		if processExited {
			if time.Since(lastOutput) >= DeadProcessTimeout && time.Since(exitedAt) >= DeadProcessTimeout {
				tail, _ := runlog.StderrTail(a.stderrPath, StderrTailBytes, StderrTailLines)
				a.emit.Emit(uiemit.EventError, uiemit.ErrorPayload{
					SessionID: a.sessionID, WorktreeID: a.worktreeID, Error: crashMessage(sawJSON, tail),
				})
				return runlog.StatusCrashed, usage, resumeToken, assistantMessageID
			}
		}

		if !sawJSON && time.Since(start) >= StartupTimeout {
			killTree(a.pid, syscall.SIGKILL)
			<-a.waitErr
			tail, _ := runlog.StderrTail(a.stderrPath, StderrTailBytes, StderrTailLines)
			a.emit.Emit(uiemit.EventError, uiemit.ErrorPayload{
				SessionID: a.sessionID, WorktreeID: a.worktreeID, Error: crashMessage(false, tail),
			})
			return runlog.StatusCrashed, usage, resumeToken, assistantMessageID
		}

		time.Sleep(tailer.PollInterval)
	}
}

func cancelledStatus(sawJSON bool) runlog.Status {
	if sawJSON {
		return runlog.StatusCancelled
	}
	return runlog.StatusCrashed
}

func crashMessage(sawJSON bool, stderrTail string) string {
	if !sawJSON {
		return "agent crashed before producing any output: " + stderrTail
	}
	return "agent crashed: " + stderrTail
}

// emitItemDeltas folds one thread item and emits the resulting deltas as
// UI events, independent of whether this is called from the detached or
// interactive supervisor.
func emitItemDeltas(a pollLoopArgs, item *cliproto.ThreadItem) {
	deltas, err := a.folder.Apply(*item)
	if err != nil {
		return
	}
	for _, d := range deltas {
		switch d.Kind {
		case itemfold.DeltaChunk:
			a.emit.Emit(uiemit.EventChunk, uiemit.ChunkPayload{SessionID: a.sessionID, WorktreeID: a.worktreeID, Content: d.Text})
		case itemfold.DeltaThinkingChunk:
			a.emit.Emit(uiemit.EventThinking, uiemit.ThinkingPayload{SessionID: a.sessionID, WorktreeID: a.worktreeID, Content: d.Text})
		case itemfold.DeltaToolUse:
			a.emit.Emit(uiemit.EventToolUse, uiemit.ToolUsePayload{
				SessionID: a.sessionID, WorktreeID: a.worktreeID,
				ID: d.ToolCall.ID, Name: d.ToolCall.Name, Input: d.ToolCall.Input, ParentToolUseID: d.ToolCall.ParentToolUseID,
			})
		case itemfold.DeltaToolResult:
			a.emit.Emit(uiemit.EventToolResult, uiemit.ToolResultPayload{
				SessionID: a.sessionID, WorktreeID: a.worktreeID, ToolUseID: d.ToolCallID, Output: d.Output,
			})
		}
	}
}

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"

	"github.com/agentsup/agentsup/internal/argbuild"
	"github.com/agentsup/agentsup/internal/cliproto"
	"github.com/agentsup/agentsup/internal/debug"
	"github.com/agentsup/agentsup/internal/hexid"
	"github.com/agentsup/agentsup/internal/itemfold"
	"github.com/agentsup/agentsup/internal/registry"
	"github.com/agentsup/agentsup/internal/runlog"
	"github.com/agentsup/agentsup/internal/uiemit"
)

// MaxInteractivePromptBytes bounds the prompt passed as an argv positional;
// past this the caller should fall back to detached mode instead.
const MaxInteractivePromptBytes = 24 * 1024

// ptyRows, ptyCols size the allocated terminal.
const (
	ptyRows = 24
	ptyCols = 120
)

// approvalTailLimit bounds the free-text tail kept for approval-prompt
// context, in bytes.
const approvalTailLimit = 2000

// InteractiveRun describes one PTY-backed invocation.
type InteractiveRun struct {
	SessionID  string
	WorktreeID string
	RunID      string
	Params     argbuild.Params
	Store      *runlog.Store
	Process    *registry.Process
	PTYWriters *registry.PTYWriter
	Emit       uiemit.Emitter
	Fallback   itemfold.FallbackMode
}

// ErrPromptTooLarge is returned when the prompt exceeds the PTY argv size
// guard; the caller should retry with the Detached Supervisor instead.
var ErrPromptTooLarge = fmt.Errorf("supervisor: prompt exceeds %d bytes, use detached mode", MaxInteractivePromptBytes)

// RunInteractive spawns the CLI under a PTY with the prompt on argv,
// detects free-text approval prompts, and lets the UI inject y/n responses
// through the PTY writer registry.
func RunInteractive(run InteractiveRun) error {
	if len(run.Params.Prompt) > MaxInteractivePromptBytes {
		return ErrPromptTooLarge
	}

	binary, err := resolveBinary(run.Params.AgentTag)
	if err != nil {
		run.Emit.Emit(uiemit.EventError, uiemit.ErrorPayload{SessionID: run.SessionID, WorktreeID: run.WorktreeID, Error: err.Error()})
		return err
	}

	run.Params.Style = argbuild.StyleInteractive
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

	logFile, err := os.OpenFile(run.Store.RunLogPath(run.SessionID, run.RunID), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("supervisor: open run log for append: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(binary, argv...)
	cmd.Dir = run.Params.WorkingDir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	setpgid(cmd)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: ptyRows, Cols: ptyCols})
	if err != nil {
		run.Emit.Emit(uiemit.EventError, uiemit.ErrorPayload{SessionID: run.SessionID, WorktreeID: run.WorktreeID, Error: err.Error()})
		return fmt.Errorf("supervisor: start pty: %w", err)
	}
	defer master.Close()

	pid := cmd.Process.Pid
	run.Process.Register(run.SessionID, pid)
	run.PTYWriters.Register(run.SessionID, master)
	defer run.Process.Unregister(run.SessionID)
	defer run.PTYWriters.Unregister(run.SessionID)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	folder := itemfold.New(run.Fallback)
	status, usage, resumeToken, assistantMessageID := interactiveLoop(interactiveLoopArgs{
		sessionID:  run.SessionID,
		worktreeID: run.WorktreeID,
		pid:        pid,
		master:     master,
		logFile:    logFile,
		process:    run.Process,
		emit:       run.Emit,
		folder:     folder,
		waitErr:    waitErr,
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

type interactiveLoopArgs struct {
	sessionID  string
	worktreeID string
	pid        int
	master     *os.File
	logFile    *os.File
	process    *registry.Process
	emit       uiemit.Emitter
	folder     *itemfold.Folder
	waitErr    chan error
}

// interactiveLoop reads PTY bytes, splits lines, routes JSON lines to the
// Item Folder (and to the run log verbatim) and free-text lines to the
// approval-prompt detector.
func interactiveLoop(a interactiveLoopArgs) (status runlog.Status, usage runlog.Usage, resumeToken, assistantMessageID string) {
	assistantMessageID = hexid.New()

	var pending strings.Builder
	var textTail strings.Builder
	sawJSON := false
	awaitingApproval := false
	lastCommandID := ""
	lastCommand := ""

	buf := make([]byte, 4096)
	for {
		n, readErr := a.master.Read(buf)
		if n > 0 {
			pending.Write(buf[:n])
			for {
				s := pending.String()
				idx := strings.IndexByte(s, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimSuffix(s[:idx], "\r")
				pending.Reset()
				pending.WriteString(s[idx+1:])

				if strings.HasPrefix(strings.TrimSpace(line), "{") {
					ev, perr := cliproto.ParseLine([]byte(line))
					if perr == nil {
						sawJSON = true
						awaitingApproval = false
						a.logFile.WriteString(line + "\n")

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
							a.emit.Emit(uiemit.EventError, uiemit.ErrorPayload{SessionID: a.sessionID, WorktreeID: a.worktreeID, Error: ev.ErrorMessage})
							return runlog.StatusCrashed, usage, resumeToken, assistantMessageID
						}

						if ev.Item != nil {
							if ev.Item.Type == cliproto.ItemCommandExecution {
								lastCommandID = ev.Item.ID
								lastCommand = ev.Item.Command
							}
							emitItemDeltas(pollLoopArgs{sessionID: a.sessionID, worktreeID: a.worktreeID, emit: a.emit, folder: a.folder}, ev.Item)
						}
						continue
					}
					debug.LogKV("supervisor", "interactive parse error", "session", a.sessionID, "err", perr.Error())
				}

				// Free-text TTY output.
				appendTail(&textTail, line)
				if !awaitingApproval && looksLikeApprovalPrompt(line) {
					awaitingApproval = true
					a.emit.Emit(uiemit.EventPermissionDenied, uiemit.PermissionDeniedPayload{
						SessionID: a.sessionID, WorktreeID: a.worktreeID,
						Denials: []uiemit.PermissionDenial{{
							ToolName:  "Bash",
							ToolUseID: fallbackToolUseID(lastCommandID),
							ToolInput: map[string]string{"command": lastCommand, "prompt_tail": textTail.String()},
						}},
					})
				}
			}
		}

		if !awaitingApproval && pending.Len() > 0 && looksLikeApprovalPrompt(pending.String()) {
			awaitingApproval = true
			a.emit.Emit(uiemit.EventPermissionDenied, uiemit.PermissionDeniedPayload{
				SessionID: a.sessionID, WorktreeID: a.worktreeID,
				Denials: []uiemit.PermissionDenial{{
					ToolName:  "Bash",
					ToolUseID: fallbackToolUseID(lastCommandID),
					ToolInput: map[string]string{"command": lastCommand, "prompt_tail": pending.String()},
				}},
			})
		}

		if readErr != nil {
			break
		}
	}

	exitErr := <-a.waitErr
	a.process.Unregister(a.sessionID)
	if !sawJSON {
		a.emit.Emit(uiemit.EventError, uiemit.ErrorPayload{SessionID: a.sessionID, WorktreeID: a.worktreeID, Error: "agent crashed before producing any output"})
		return runlog.StatusCrashed, usage, resumeToken, assistantMessageID
	}
	_ = exitErr
	a.emit.Emit(uiemit.EventCancelled, uiemit.CancelledPayload{SessionID: a.sessionID, WorktreeID: a.worktreeID})
	return runlog.StatusCancelled, usage, resumeToken, assistantMessageID
}

func fallbackToolUseID(id string) string {
	if id != "" {
		return id
	}
	return "synthetic:" + hexid.New()
}

func appendTail(tail *strings.Builder, line string) {
	tail.WriteString(line)
	tail.WriteByte('\n')
	if tail.Len() <= approvalTailLimit {
		return
	}
	s := tail.String()
	s = s[len(s)-approvalTailLimit:]
	tail.Reset()
	tail.WriteString(s)
}

// looksLikeApprovalPrompt implements the literal, case-insensitive matching
// rules for free-text approval prompts: "[y/n]", "(y/n)", or the words
// "approve"/"proceed" co-occurring with "y/n".
func looksLikeApprovalPrompt(s string) bool {
	lower := strings.ToLower(s)
	if strings.Contains(lower, "[y/n]") || strings.Contains(lower, "(y/n)") {
		return true
	}
	if strings.Contains(lower, "y/n") {
		if strings.Contains(lower, "approve") || strings.Contains(lower, "proceed") {
			return true
		}
	}
	return false
}

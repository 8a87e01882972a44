package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentsup/agentsup/internal/argbuild"
	"github.com/agentsup/agentsup/internal/hexid"
	"github.com/agentsup/agentsup/internal/itemfold"
	"github.com/agentsup/agentsup/internal/supervisor"
	"github.com/agentsup/agentsup/internal/uiemit"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Start a new supervised agent run",
	Long: `Start a new supervised agent run, either detached (the default) or
interactive under a PTY (--interactive), and print streaming UI events as
NDJSON to stdout. With no prompt argument, reads the prompt from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("agent", "codex", "Agent CLI to drive (see agentmeta catalog)")
	runCmd.Flags().String("session", "", "Session id (generated if omitted)")
	runCmd.Flags().String("mode", "plan", "Approval/sandbox policy: plan, build, or yolo")
	runCmd.Flags().String("model", "", "Model override")
	runCmd.Flags().String("reasoning-effort", "", "Reasoning effort override")
	runCmd.Flags().String("resume", "", "Resume token from a prior run")
	runCmd.Flags().String("workdir", ".", "Working directory for the agent")
	runCmd.Flags().Bool("interactive", false, "Run under a PTY instead of detached")
	rootCmd.AddCommand(runCmd)
}

func parseMode(s string) argbuild.Mode {
	switch s {
	case "build":
		return argbuild.ModeBuild
	case "yolo":
		return argbuild.ModeYolo
	default:
		return argbuild.ModePlan
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	agentTag, _ := cmd.Flags().GetString("agent")
	sessionID, _ := cmd.Flags().GetString("session")
	modeFlag, _ := cmd.Flags().GetString("mode")
	model, _ := cmd.Flags().GetString("model")
	effort, _ := cmd.Flags().GetString("reasoning-effort")
	resume, _ := cmd.Flags().GetString("resume")
	workdir, _ := cmd.Flags().GetString("workdir")
	interactive, _ := cmd.Flags().GetBool("interactive")

	if sessionID == "" {
		sessionID = hexid.New()
	}

	var prompt string
	if len(args) == 1 {
		prompt = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = string(data)
	}

	state, err := newSharedState(runsDir(cmd))
	if err != nil {
		return err
	}

	params := argbuild.Params{
		SessionID:       sessionID,
		WorktreeID:      sessionID,
		AgentTag:        agentTag,
		ResumeToken:     resume,
		Model:           model,
		ReasoningEffort: effort,
		Mode:            parseMode(modeFlag),
		WorkingDir:      workdir,
		Prompt:          prompt,
	}

	emit := uiemit.NewInProcess(4096)
	sessionHub.emitters[sessionID] = emit
	sessionHub.processes[sessionID] = state.process
	sessionHub.ptyWriters[sessionID] = state.ptys
	defer delete(sessionHub.emitters, sessionID)
	defer delete(sessionHub.processes, sessionID)
	defer delete(sessionHub.ptyWriters, sessionID)

	ch, _, unsubscribe := emit.Subscribe(256)
	defer unsubscribe()

	runID := hexid.New()
	done := make(chan error, 1)

	if interactive {
		go func() {
			done <- supervisor.RunInteractive(supervisor.InteractiveRun{
				SessionID:  sessionID,
				WorktreeID: sessionID,
				RunID:      runID,
				Params:     params,
				Store:      state.store,
				Process:    state.process,
				PTYWriters: state.ptys,
				Emit:       emit,
				Fallback:   itemfold.FallbackReplace,
			})
		}()
	} else {
		go func() {
			done <- supervisor.RunDetached(supervisor.DetachedRun{
				SessionID:  sessionID,
				WorktreeID: sessionID,
				RunID:      runID,
				Params:     params,
				Store:      state.store,
				Process:    state.process,
				Emit:       emit,
				Fallback:   itemfold.FallbackReplace,
			})
		}()
	}

	printer := newEventPrinter(cmd.OutOrStdout())
	for {
		select {
		case env := <-ch:
			printer.print(env)
			if env.Name == uiemit.EventDone || env.Name == uiemit.EventCancelled {
				return <-done
			}
		case err := <-done:
			return err
		}
	}
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/agentsup/agentsup/internal/registry"
	"github.com/agentsup/agentsup/internal/uiemit"
	"github.com/agentsup/agentsup/internal/watchtui"
)

var attachCmd = &cobra.Command{
	Use:     "attach <session-id>",
	Aliases: []string{"watch"},
	Short:   "Attach to a running session's live event stream",
	Long: `Attach to a running session and render its streaming assistant message,
tool calls, and approval prompts in a live terminal viewer.

This only shows activity from a supervisor running in this same process
(e.g. started via a concurrent 'agentsupctl run'); attaching across
processes requires 'agentsupctl serve' and a websocket-capable client.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func init() {
	rootCmd.AddCommand(attachCmd)
}

// sessionHub is set by run.go's in-process invocation so attach can find a
// concurrently running session's emitter. In a single-process CLI this is
// the simplest way to wire "run" and "attach" together without a daemon.
var sessionHub = struct {
	emitters   map[string]*uiemit.InProcess
	processes  map[string]*registry.Process
	ptyWriters map[string]*registry.PTYWriter
}{
	emitters:   make(map[string]*uiemit.InProcess),
	processes:  make(map[string]*registry.Process),
	ptyWriters: make(map[string]*registry.PTYWriter),
}

func runAttach(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	emit, ok := sessionHub.emitters[sessionID]
	if !ok {
		return fmt.Errorf("attach: no running session %q in this process", sessionID)
	}

	ch, replayed, unsubscribe := emit.Subscribe(256)
	defer unsubscribe()

	if !isInteractiveTerminal() {
		printer := newEventPrinter(cmd.OutOrStdout())
		for _, env := range replayed {
			printer.print(env)
		}
		for env := range ch {
			printer.print(env)
			if env.Name == uiemit.EventDone || env.Name == uiemit.EventCancelled {
				return nil
			}
		}
		return nil
	}

	model := watchtui.New(sessionID, ch, replayed)
	p := tea.NewProgram(model)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		p.Quit()
	}()

	_, err := p.Run()
	return err
}

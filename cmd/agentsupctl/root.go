// Command agentsupctl drives external agent CLI binaries (Codex, Claude,
// and other catalog entries) in detached or PTY-interactive mode, streams
// their NDJSON event output into a unified UI event model, and keeps a
// durable, crash-recoverable run log per session.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/agentsup/agentsup/internal/agentmeta"
	"github.com/agentsup/agentsup/internal/buildinfo"
	"github.com/agentsup/agentsup/internal/debug"
	"github.com/agentsup/agentsup/internal/registry"
	"github.com/agentsup/agentsup/internal/runlog"
)

var rootCmd = &cobra.Command{
	Use:   "agentsupctl",
	Short: "Supervise streaming agent CLI runs",
	Long: fmt.Sprintf(`agentsupctl v%s

Drives external agent CLI binaries (%s) in detached or interactive mode,
parses their NDJSON event stream into a unified UI event model, and keeps
a durable, crash-recoverable run log per session.`,
		buildinfo.Current().Version, strings.Join(agentmeta.Names(), ", ")),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if debugFlag {
			if path, err := debug.Init(); err == nil {
				debug.LogKV("cli", "debug logging enabled", "path", path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Write a verbose diagnostic log under ~/.agentsup/debug/")
	rootCmd.PersistentFlags().String("runs-dir", defaultRunsDir(), "Directory holding session run logs")
}

// sharedState is the process-wide state every subcommand needing a live
// supervisor shares: the run log store and the two registries.
type sharedState struct {
	store   *runlog.Store
	process *registry.Process
	ptys    *registry.PTYWriter
}

func newSharedState(rootDir string) (*sharedState, error) {
	store, err := runlog.Open(rootDir)
	if err != nil {
		return nil, err
	}
	return &sharedState{
		store:   store,
		process: registry.NewProcess(),
		ptys:    registry.NewPTYWriter(),
	}, nil
}

func defaultRunsDir() string {
	if v := os.Getenv("AGENTSUP_RUNS_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentsup-runs"
	}
	return filepath.Join(home, ".agentsup", "runs")
}

func runsDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("runs-dir")
	if dir == "" {
		return defaultRunsDir()
	}
	return dir
}

func isInteractiveTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func main() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a running session",
	Long: `Cancel a running session: its Process Registry entry is removed, so the
Detached Supervisor observes "not running" on its next poll and stops
tailing. The external CLI child may continue to completion on its own;
cancellation does not forcibly kill it. The Interactive Supervisor does not
consult the registry, so an interactive run keeps going until its child
exits.

This only affects a session running in this same process (see 'attach').`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	proc, ok := sessionHub.processes[sessionID]
	if !ok {
		return fmt.Errorf("cancel: no running session %q in this process", sessionID)
	}
	proc.Unregister(sessionID)
	fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", sessionID)
	return nil
}

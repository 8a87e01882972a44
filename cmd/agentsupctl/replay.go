package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentsup/agentsup/internal/itemfold"
	"github.com/agentsup/agentsup/internal/runlog"
)

var replayCmd = &cobra.Command{
	Use:   "replay <session-id> <run-id>",
	Short: "Reconstruct a stored run's assistant message from its run log",
	Args:  cobra.ExactArgs(2),
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().Bool("crashed", false, "Treat the run as crashed (substitute a placeholder if empty)")
	replayCmd.Flags().Bool("json", false, "Print the full reconstruction (text, blocks, tool calls) as JSON")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	sessionID, runID := args[0], args[1]
	crashed, _ := cmd.Flags().GetBool("crashed")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := runlog.Open(runsDir(cmd))
	if err != nil {
		return err
	}

	result, err := runlog.Replay(store.RunLogPath(sessionID, runID), itemfold.FallbackReplace, crashed)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	return nil
}

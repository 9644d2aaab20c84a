package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheHiddenLayer/zen/internal/core"
)

var acceptCmd = &cobra.Command{
	Use:   "accept <workflow-id>",
	Short: "Accept a completed workflow's merged staging branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccept,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <workflow-id>",
	Short: "Reject a completed workflow's merged staging branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

func init() {
	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(rejectCmd)
}

func runAccept(cmd *cobra.Command, args []string) error {
	return transitionWorkflow(cmd, args[0], (*core.Workflow).Accept)
}

func runReject(cmd *cobra.Command, args []string) error {
	return transitionWorkflow(cmd, args[0], (*core.Workflow).Reject)
}

// transitionWorkflow loads a workflow, applies a terminal-phase state
// transition (Accept or Reject), and persists the result.
func transitionWorkflow(cmd *cobra.Command, rawID string, transition func(*core.Workflow) error) error {
	store, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	id := core.WorkflowID(rawID)
	ctx := cmd.Context()
	wf, err := store.LoadWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("loading workflow %s: %w", id, err)
	}

	if err := transition(wf); err != nil {
		return fmt.Errorf("transitioning workflow %s: %w", id, err)
	}
	if err := store.SaveWorkflow(ctx, wf); err != nil {
		return fmt.Errorf("persisting workflow %s: %w", id, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "workflow %s is now %s\n", id, wf.Status)
	return nil
}

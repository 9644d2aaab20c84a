package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/TheHiddenLayer/zen/internal/core"
)

var statusCmd = &cobra.Command{
	Use:     "status <workflow-id>",
	Aliases: []string{"review"},
	Short:   "Show a workflow's current phase, status, and tasks (for review before accept/reject)",
	Args:    cobra.ExactArgs(1),
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	id := core.WorkflowID(args[0])
	wf, err := store.LoadWorkflow(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("loading workflow %s: %w", id, err)
	}

	tasks, err := store.ListTasksByWorkflow(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("listing tasks for workflow %s: %w", id, err)
	}

	label := lipgloss.NewStyle().Bold(true)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", label.Render("name:"), wf.Name)
	fmt.Fprintf(out, "%s %s\n", label.Render("phase:"), wf.Phase)
	fmt.Fprintf(out, "%s %s\n", label.Render("status:"), wf.Status)
	fmt.Fprintf(out, "%s %s\n", label.Render("staging branch:"), wf.StagingBranch)
	if wf.Error != "" {
		fmt.Fprintf(out, "%s %s\n", label.Render("error:"), wf.Error)
	}
	fmt.Fprintf(out, "%s\n", label.Render(fmt.Sprintf("tasks (%d):", len(tasks))))
	for _, t := range tasks {
		fmt.Fprintf(out, "  %-38s %-10s tokens_in=%d tokens_out=%d\n", t.ID, t.Status, t.TokensIn, t.TokensOut)
	}
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/TheHiddenLayer/zen/internal/orchestrator"
)

var (
	runAgent string
	runName  string
	runCopy  bool
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Turn a natural-language prompt into a merged staging branch",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runAgent, "agent", "", "coding-assistant agent to drive this workflow (default: agents.default)")
	runCmd.Flags().StringVar(&runName, "name", "", "human-readable workflow name (default: derived from the prompt)")
	runCmd.Flags().BoolVar(&runCopy, "copy-branch", false, "copy the resulting staging branch name to the clipboard")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	prompt := strings.Join(args, " ")
	name := runName
	if name == "" {
		name = deriveWorkflowName(prompt)
	}

	orc, err := buildOrchestrator(ctx, appConfig, runAgent)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	appLog.Info("starting workflow", "name", name)
	result, err := orc.Execute(ctx, name, prompt)
	if err != nil {
		if result != nil {
			printWorkflowResult(cmd, result)
		}
		return fmt.Errorf("workflow failed: %w", err)
	}

	printWorkflowResult(cmd, result)

	if runCopy && result.StagingBranch != "" {
		if err := clipboard.WriteAll(result.StagingBranch); err != nil {
			appLog.Warn("failed to copy staging branch to clipboard", "error", err)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "staging branch copied to clipboard")
		}
	}
	return nil
}

// deriveWorkflowName builds a short slug from a prompt's leading words, the
// same fallback a caller that skips --name should get rather than an empty
// workflow name.
func deriveWorkflowName(prompt string) string {
	fields := strings.Fields(prompt)
	if len(fields) > 6 {
		fields = fields[:6]
	}
	return strings.ToLower(strings.Join(fields, "-"))
}

var (
	resultLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	resultOkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// printWorkflowResult renders a WorkflowResult the way the rest of cmd/zen's
// output does: bold labels, status colored by outcome.
func printWorkflowResult(cmd *cobra.Command, r *orchestrator.WorkflowResult) {
	statusStyle := resultOkStyle
	if r.Error != "" {
		statusStyle = resultFailStyle
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", resultLabelStyle.Render("workflow:"), r.WorkflowID)
	fmt.Fprintf(out, "%s %s\n", resultLabelStyle.Render("phase:"), r.Phase)
	fmt.Fprintf(out, "%s %s\n", resultLabelStyle.Render("status:"), statusStyle.Render(string(r.Status)))
	if r.StagingBranch != "" {
		fmt.Fprintf(out, "%s %s\n", resultLabelStyle.Render("staging branch:"), r.StagingBranch)
	}
	fmt.Fprintf(out, "%s %d\n", resultLabelStyle.Render("tasks:"), len(r.TaskIDs))
	if r.Error != "" {
		fmt.Fprintf(out, "%s %s\n", resultLabelStyle.Render("error:"), r.Error)
	}
}

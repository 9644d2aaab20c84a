package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/TheHiddenLayer/zen/internal/core"
)

var listFilter string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted workflows",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listFilter, "filter", "", "fuzzy-match workflow names against this query")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	store, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	workflows, err := store.ListWorkflows(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing workflows: %w", err)
	}

	if listFilter != "" {
		workflows = filterWorkflowsByName(workflows, listFilter)
	}

	out := cmd.OutOrStdout()
	header := lipgloss.NewStyle().Bold(true)
	fmt.Fprintf(out, "%s\n", header.Render(fmt.Sprintf("%-40s %-24s %-12s %-10s", "ID", "NAME", "PHASE", "STATUS")))
	for _, wf := range workflows {
		fmt.Fprintf(out, "%-40s %-24s %-12s %-10s\n", wf.ID, truncate(wf.Name, 24), wf.Phase, wf.Status)
	}
	return nil
}

// filterWorkflowsByName fuzzy-matches query against every workflow's name,
// for a quick `zen list --filter deploy` instead of grepping full IDs.
func filterWorkflowsByName(workflows []*core.Workflow, query string) []*core.Workflow {
	names := make([]string, len(workflows))
	for i, wf := range workflows {
		names[i] = wf.Name
	}
	matches := fuzzy.Find(query, names)
	filtered := make([]*core.Workflow, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, workflows[m.Index])
	}
	return filtered
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

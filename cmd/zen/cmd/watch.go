package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/vcsstore"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <workflow-id>",
	Short: "Watch a workflow's phase and task progress live in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "poll interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	store, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("building markdown renderer: %w", err)
	}

	m := watchModel{
		store:    store,
		id:       core.WorkflowID(args[0]),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		renderer: renderer,
		interval: watchInterval,
	}
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

type watchModel struct {
	store    *vcsstore.Store
	id       core.WorkflowID
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	interval time.Duration

	wf    *core.Workflow
	tasks []*core.Task
	err   error
	done  bool
}

type watchTickMsg struct{}

type watchPolledMsg struct {
	wf    *core.Workflow
	tasks []*core.Task
	err   error
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m watchModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		wf, err := m.store.LoadWorkflow(ctx, m.id)
		if err != nil {
			return watchPolledMsg{err: err}
		}
		tasks, err := m.store.ListTasksByWorkflow(ctx, m.id)
		if err != nil {
			return watchPolledMsg{err: err}
		}
		return watchPolledMsg{wf: wf, tasks: tasks}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case watchPolledMsg:
		m.wf, m.tasks, m.err = msg.wf, msg.tasks, msg.err
		if m.wf != nil && isTerminalWorkflowStatus(m.wf.Status) {
			m.done = true
			return m, tea.Quit
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return watchTickMsg{} })
	case watchTickMsg:
		return m, m.poll()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func isTerminalWorkflowStatus(s core.WorkflowStatus) bool {
	switch s {
	case core.WorkflowStatusCompleted, core.WorkflowStatusFailed, core.WorkflowStatusAccepted, core.WorkflowStatusRejected:
		return true
	default:
		return false
	}
}

func (m watchModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("error loading workflow %s: %v\n", m.id, m.err)
	}
	if m.wf == nil {
		return fmt.Sprintf("%s loading %s...\n", m.spinner.View(), m.id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.wf.Name)
	fmt.Fprintf(&b, "- phase: **%s**\n", m.wf.Phase)
	fmt.Fprintf(&b, "- status: **%s**\n", m.wf.Status)
	fmt.Fprintf(&b, "- staging branch: `%s`\n\n", m.wf.StagingBranch)

	fmt.Fprintf(&b, "## Tasks\n\n")
	for _, t := range m.tasks {
		fmt.Fprintf(&b, "- `%s` %s — %s", t.ID, t.Name, t.Status)
		if t.TokensIn > 0 || t.TokensOut > 0 {
			fmt.Fprintf(&b, " (in: %d, out: %d tokens)", t.TokensIn, t.TokensOut)
		}
		b.WriteString("\n")
	}

	out, err := m.renderer.Render(b.String())
	if err != nil {
		out = b.String()
	}
	if !m.done {
		out += m.spinner.View() + " watching, press q to quit\n"
	}
	return out
}

package cmd

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/jaypipes/ghw"
	"github.com/spf13/cobra"

	"github.com/TheHiddenLayer/zen/internal/core"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the host has enough resources and agent binaries available",
	// Diagnostics must run even against a config that fails validation
	// (that is often exactly what brought the operator here): load leniently
	// instead of the root command's strict PersistentPreRunE.
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = loadAppConfigLenient(cmd)
		return nil
	},
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cpu, err := ghw.CPU()
	if err != nil {
		fmt.Fprintf(out, "cpu:    unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(out, "cpu:    %d physical, %d logical\n", cpu.TotalCores, cpu.TotalThreads)
	}

	mem, err := ghw.Memory()
	if err != nil {
		fmt.Fprintf(out, "memory: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(out, "memory: %.1f GiB total\n", float64(mem.TotalPhysicalBytes)/(1<<30))
	}

	if appConfig == nil {
		fmt.Fprintln(out, "agents: no config loaded (run `zen init` first)")
		return nil
	}
	checkConfiguredAgents(out)
	return nil
}

func checkConfiguredAgents(out io.Writer) {
	agents := map[string]string{
		core.AgentClaude:   appConfig.Agents.Claude.Path,
		core.AgentGemini:   appConfig.Agents.Gemini.Path,
		core.AgentCodex:    appConfig.Agents.Codex.Path,
		core.AgentCopilot:  appConfig.Agents.Copilot.Path,
		core.AgentOpenCode: appConfig.Agents.OpenCode.Path,
	}
	enabled := map[string]bool{
		core.AgentClaude:   appConfig.Agents.Claude.Enabled,
		core.AgentGemini:   appConfig.Agents.Gemini.Enabled,
		core.AgentCodex:    appConfig.Agents.Codex.Enabled,
		core.AgentCopilot:  appConfig.Agents.Copilot.Enabled,
		core.AgentOpenCode: appConfig.Agents.OpenCode.Enabled,
	}
	for _, name := range []string{core.AgentClaude, core.AgentGemini, core.AgentCodex, core.AgentCopilot, core.AgentOpenCode} {
		if !enabled[name] {
			continue
		}
		path := agents[name]
		if _, err := exec.LookPath(path); err != nil {
			fmt.Fprintf(out, "agent %-10s NOT FOUND on PATH (%s)\n", name, path)
			continue
		}
		fmt.Fprintf(out, "agent %-10s ok (%s)\n", name, path)
	}
}

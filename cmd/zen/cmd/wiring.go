package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/TheHiddenLayer/zen/internal/adapters/git"
	"github.com/TheHiddenLayer/zen/internal/config"
	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/orchestrator"
	"github.com/TheHiddenLayer/zen/internal/telemetry"
	"github.com/TheHiddenLayer/zen/internal/vcsstore"
)

// resolveAgent looks up the named agent in cfg.Agents, falling back to the
// configured default when name is empty, and rejects unusable selections
// up front instead of letting the orchestrator builder fail opaquely.
func resolveAgent(cfg *config.Config, name string) (string, *config.AgentConfig, error) {
	if name == "" {
		name = cfg.Agents.Default
	}
	agent := cfg.Agents.Get(name)
	if agent == nil {
		return "", nil, fmt.Errorf("unknown agent %q", name)
	}
	if !agent.Enabled {
		return "", nil, fmt.Errorf("agent %q is not enabled in config", name)
	}
	return name, agent, nil
}

// parseDuration parses a validated config duration string, falling back to
// def when s is empty (the zero value signals "use the orchestrator's own
// built-in default" per internal/orchestrator/config.go).
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// buildOrchestrator wires a loaded config.Config into a ready
// orchestrator.Orchestrator, the one place cmd/zen translates the ambient
// Viper-backed config shape into the orchestrator's own Config/core.Config
// literals.
func buildOrchestrator(ctx context.Context, cfg *config.Config, agentName string) (*orchestrator.Orchestrator, error) {
	_, agent, err := resolveAgent(cfg, agentName)
	if err != nil {
		return nil, err
	}

	startCmd := agent.Path
	if agent.Model != "" {
		startCmd = fmt.Sprintf("%s --model %s", agent.Path, agent.Model)
	}

	metrics := telemetry.NewMetrics("zen")

	builder := orchestrator.NewOrchestratorBuilder().
		WithRepository(cfg.Repository.Path).
		WithIndexPath(cfg.State.IndexPath).
		WithStartCommand(startCmd).
		WithMaxParallel(cfg.Workflow.MaxParallelAgents).
		WithMetrics(metrics).
		WithPublisher(core.PublisherFunc(func(e core.Event) {
			appLog.With("event", e.Type, "workflow_id", e.WorkflowID).Debug("orchestrator event")
		})).
		WithWorkflowConfig(core.Config{
			UpdateDocs:          cfg.Workflow.UpdateDocs,
			MaxParallelAgents:   cfg.Workflow.MaxParallelAgents,
			StagingBranchPrefix: cfg.Workflow.StagingBranchPrefix,
		}).
		WithConfig(orchestrator.Config{
			PollInterval:          parseDuration(cfg.Workflow.PollInterval, 2*time.Second),
			PlanningTimeout:       parseDuration(cfg.Workflow.PlanningTimeout, 10*time.Minute),
			ImplementationTimeout: parseDuration(cfg.Workflow.ImplementationTimeout, 30*time.Minute),
			WorktreeBaseDir:       cfg.Repository.WorktreeBaseDir,
			Scheduler: orchestrator.SchedulerConfig{
				MaxParallel:   cfg.Workflow.MaxParallelAgents,
				SessionPrefix: cfg.Scheduler.SessionPrefix,
			},
			ConflictResolver: orchestrator.ConflictResolverConfig{
				PollInterval:         parseDuration(cfg.ConflictResolver.PollInterval, 2*time.Second),
				Timeout:              parseDuration(cfg.ConflictResolver.Timeout, 10*time.Minute),
				MaxResolutionRetries: cfg.ConflictResolver.MaxResolutionRetries,
			},
			HealthMonitor: orchestrator.HealthMonitorConfig{
				Interval:               parseDuration(cfg.HealthMonitor.Interval, 15*time.Second),
				StuckThreshold:         parseDuration(cfg.HealthMonitor.StuckThreshold, 5*time.Minute),
				StuckPatterns:          cfg.HealthMonitor.StuckPatterns,
				DecomposeLineThreshold: cfg.HealthMonitor.DecomposeLineThreshold,
			},
		})

	return builder.Build(ctx)
}

// openStore opens the vcsstore index directly, for read-only/administrative
// commands (status, list, accept, reject) that have no need to spin up an
// agent pool or task scheduler just to inspect persisted workflow state.
func openStore(cfg *config.Config) (*vcsstore.Store, error) {
	repoClient, err := git.NewClient(cfg.Repository.Path)
	if err != nil {
		return nil, fmt.Errorf("opening repository git client: %w", err)
	}
	store, err := vcsstore.Open(repoClient, cfg.State.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("opening vcs store: %w", err)
	}
	return store, nil
}

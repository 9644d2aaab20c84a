package orchestrator

import (
	"os"
	"time"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Config bounds the orchestrator's own behavior, independent of the
// per-workflow core.Config (max parallel agents, staging prefix, docs) the
// caller supplies to Execute.
type Config struct {
	// PollInterval is how often a single-agent phase's skill loop re-reads
	// its agent's pane.
	PollInterval time.Duration

	// PlanningTimeout bounds the pdd, code-task-generator, and
	// codebase-summary skill loops (spec §5: "10 min for planning
	// skills").
	PlanningTimeout time.Duration

	// ImplementationTimeout bounds each implementation-phase task's skill
	// loop (spec §5: "30 min for code-assist").
	ImplementationTimeout time.Duration

	// WorktreeBaseDir roots every worktree this orchestrator provisions,
	// single-agent phases and task-graph dispatch alike.
	WorktreeBaseDir string

	// SchedulerConfig tunes the DAG Scheduler's dispatch (skill name,
	// session prefix default to "code-assist"/"zen" when left unset).
	Scheduler SchedulerConfig

	// ConflictResolver tunes the merging phase's resolver-agent behavior.
	ConflictResolver ConflictResolverConfig

	// HealthMonitor tunes stall detection during Implementation.
	HealthMonitor HealthMonitorConfig
}

// SchedulerConfig mirrors scheduler.Config's tunables without importing the
// package into every caller's Config literal.
type SchedulerConfig struct {
	MaxParallel   int
	SessionPrefix string
}

// ConflictResolverConfig mirrors conflictresolver.Config's tunables.
type ConflictResolverConfig struct {
	PollInterval         time.Duration
	Timeout              time.Duration
	MaxResolutionRetries int
}

// HealthMonitorConfig mirrors healthmonitor.Config's tunables.
type HealthMonitorConfig struct {
	Interval               time.Duration
	StuckThreshold         time.Duration
	StuckPatterns          []string
	DecomposeLineThreshold int
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 2 * time.Second
	}
	return c.PollInterval
}

func (c Config) planningTimeout() time.Duration {
	if c.PlanningTimeout <= 0 {
		return 10 * time.Minute
	}
	return c.PlanningTimeout
}

func (c Config) implementationTimeout() time.Duration {
	if c.ImplementationTimeout <= 0 {
		return 30 * time.Minute
	}
	return c.ImplementationTimeout
}

func (c Config) worktreeBaseDir() string {
	if c.WorktreeBaseDir == "" {
		return defaultWorktreeBaseDir()
	}
	return c.WorktreeBaseDir
}

func defaultWorktreeBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".zen/worktrees"
	}
	return home + "/.zen/worktrees"
}

// phaseMonitorConfig returns the polling/timeout bound for the named
// skill's single-agent loop: every phase skill but code-assist uses the
// planning timeout (spec §5).
func (o *Orchestrator) phaseMonitorConfig(skillName string) MonitorConfig {
	timeout := o.config.planningTimeout()
	if skillName == core.SkillCodeAssist {
		timeout = o.config.implementationTimeout()
	}
	return MonitorConfig{PollInterval: o.config.pollInterval(), Timeout: timeout}
}

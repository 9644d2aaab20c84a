package config

// Config holds all Zen application configuration: everything a `cmd/zen`
// entrypoint needs to build an orchestrator.OrchestratorBuilder without
// hand-assembling every component config itself.
type Config struct {
	Log              LogConfig              `mapstructure:"log"`
	Repository       RepositoryConfig       `mapstructure:"repository" validate:"required"`
	Agents           AgentsConfig           `mapstructure:"agents" validate:"required"`
	Workflow         WorkflowConfig         `mapstructure:"workflow" validate:"required"`
	Scheduler        SchedulerConfig        `mapstructure:"scheduler"`
	HealthMonitor    HealthMonitorConfig    `mapstructure:"health_monitor"`
	ConflictResolver ConflictResolverConfig `mapstructure:"conflict_resolver"`
	State            StateConfig            `mapstructure:"state" validate:"required"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=auto text json"`
	File   string `mapstructure:"file"`
}

// RepositoryConfig points the orchestrator at the repository its task graph
// and worktrees operate on.
type RepositoryConfig struct {
	Path            string `mapstructure:"path" validate:"required"`
	WorktreeBaseDir string `mapstructure:"worktree_base_dir" validate:"required"`
}

// AgentsConfig configures the coding-assistant CLIs available to spawn.
type AgentsConfig struct {
	// Default is the agent used when the caller (a CLI flag) supplies
	// none; must name an enabled agent below.
	Default  string      `mapstructure:"default" validate:"required,knownagent"`
	Claude   AgentConfig `mapstructure:"claude"`
	Gemini   AgentConfig `mapstructure:"gemini"`
	Codex    AgentConfig `mapstructure:"codex"`
	Copilot  AgentConfig `mapstructure:"copilot"`
	OpenCode AgentConfig `mapstructure:"opencode"`
}

// AgentConfig configures a single coding-assistant CLI.
type AgentConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Path        string  `mapstructure:"path"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// WorkflowConfig configures the per-workflow defaults Execute applies to
// every workflow it creates (spec §4.12's core.Config), plus the timeouts
// the orchestrator's own phase helpers use (spec §5).
type WorkflowConfig struct {
	MaxParallelAgents     int    `mapstructure:"max_parallel_agents" validate:"gte=1"`
	StagingBranchPrefix   string `mapstructure:"staging_branch_prefix" validate:"required"`
	UpdateDocs            bool   `mapstructure:"update_docs"`
	PlanningTimeout       string `mapstructure:"planning_timeout" validate:"omitempty,gotimeduration"`
	ImplementationTimeout string `mapstructure:"implementation_timeout" validate:"omitempty,gotimeduration"`
	PollInterval          string `mapstructure:"poll_interval" validate:"omitempty,gotimeduration"`
}

// SchedulerConfig tunes the DAG Scheduler's agent session naming.
type SchedulerConfig struct {
	SessionPrefix string `mapstructure:"session_prefix"`
}

// HealthMonitorConfig tunes stall detection during Implementation.
type HealthMonitorConfig struct {
	Interval               string   `mapstructure:"interval" validate:"omitempty,gotimeduration"`
	StuckThreshold         string   `mapstructure:"stuck_threshold" validate:"omitempty,gotimeduration"`
	StuckPatterns          []string `mapstructure:"stuck_patterns"`
	DecomposeLineThreshold int      `mapstructure:"decompose_line_threshold" validate:"gte=0"`
}

// ConflictResolverConfig tunes the merging phase's resolver-agent behavior.
type ConflictResolverConfig struct {
	PollInterval         string `mapstructure:"poll_interval" validate:"omitempty,gotimeduration"`
	Timeout              string `mapstructure:"timeout" validate:"omitempty,gotimeduration"`
	MaxResolutionRetries int    `mapstructure:"max_resolution_retries" validate:"gte=0"`
}

// StateConfig configures the vcsstore ref/notes index.
type StateConfig struct {
	IndexPath string `mapstructure:"index_path" validate:"required"`
}

// Enabled reports whether the named agent is both known and enabled.
func (a AgentsConfig) Enabled(name string) bool {
	cfg := a.byName(name)
	return cfg != nil && cfg.Enabled
}

// Get returns the config for the named agent, or nil if the name is unknown.
func (a *AgentsConfig) Get(name string) *AgentConfig {
	return a.byName(name)
}

func (a *AgentsConfig) byName(name string) *AgentConfig {
	switch name {
	case "claude":
		return &a.Claude
	case "gemini":
		return &a.Gemini
	case "codex":
		return &a.Codex
	case "copilot":
		return &a.Copilot
	case "opencode":
		return &a.OpenCode
	default:
		return nil
	}
}

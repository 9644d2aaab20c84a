// Package core contains the domain model shared by every other package:
// workflows, tasks, agents, dependency edges, errors, and events. Nothing in
// this package talks to a process, a file, or a network socket.
package core

// Agent identifiers name the external coding-assistant binary a skill
// invocation is driven through. The orchestrator treats all of them as
// opaque subprocesses; only the invocation strings differ.
const (
	AgentClaude   = "claude"
	AgentGemini   = "gemini"
	AgentCodex    = "codex"
	AgentCopilot  = "copilot"
	AgentOpenCode = "opencode"
)

// Agents is the ordered list of all supported external assistants.
var Agents = []string{
	AgentClaude,
	AgentGemini,
	AgentCodex,
	AgentCopilot,
	AgentOpenCode,
}

// ValidAgents is a map for O(1) agent-name validation.
var ValidAgents = map[string]bool{
	AgentClaude:   true,
	AgentGemini:   true,
	AgentCodex:    true,
	AgentCopilot:  true,
	AgentOpenCode: true,
}

// IsValidAgent checks if the given agent name is valid.
func IsValidAgent(agent string) bool {
	return ValidAgents[agent]
}

// AgentModels maps each agent to its supported models. Used only by config
// validation; the scheduler never branches on model identity.
var AgentModels = map[string][]string{
	AgentClaude: {
		"claude-opus-4-6",
		"claude-sonnet-4-5-20250929",
		"claude-haiku-4-5-20251001",
		"opus", "sonnet", "haiku",
	},
	AgentGemini: {
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
	},
	AgentCodex: {
		"gpt-5.3-codex",
		"gpt-5.2-codex",
		"gpt-5.1-codex-max",
		"gpt-5.1-codex",
	},
	AgentCopilot: {
		"claude-sonnet-4.5",
		"claude-opus-4.6",
		"gpt-5.2-codex",
	},
	AgentOpenCode: {
		"qwen2.5-coder:32b",
		"qwen3-coder:30b",
		"deepseek-r1:32b",
	},
}

// AgentDefaultModels maps each agent to its default model.
var AgentDefaultModels = map[string]string{
	AgentClaude:   "sonnet",
	AgentGemini:   "gemini-2.5-flash",
	AgentCodex:    "gpt-5.3-codex",
	AgentCopilot:  "claude-sonnet-4.5",
	AgentOpenCode: "qwen2.5-coder:32b",
}

// GetSupportedModels returns the list of supported models for an agent.
func GetSupportedModels(agent string) []string {
	return AgentModels[agent]
}

// GetDefaultModel returns the default model for an agent.
func GetDefaultModel(agent string) string {
	return AgentDefaultModels[agent]
}

// IsValidModel checks if a model is valid for a given agent.
func IsValidModel(agent, model string) bool {
	for _, m := range AgentModels[agent] {
		if m == model {
			return true
		}
	}
	return false
}

// Skill names the core knows how to drive through the Skill Interaction
// Loop. Each has a fixed initial-command template (see internal/skillloop).
const (
	SkillPDD                = "pdd"
	SkillCodeTaskGenerator  = "code-task-generator"
	SkillCodeAssist         = "code-assist"
	SkillCodebaseSummary    = "codebase-summary"
	SkillConflictResolver   = "resolver"
)

// Log levels.
const (
	LogDebug = "debug"
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)

// LogLevels is the ordered list of log levels.
var LogLevels = []string{LogDebug, LogInfo, LogWarn, LogError}

// Log formats.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogFormats is the ordered list of log formats.
var LogFormats = []string{LogFormatAuto, LogFormatText, LogFormatJSON}

// Trace modes.
const (
	TraceModeOff     = "off"
	TraceModeSummary = "summary"
	TraceModeFull    = "full"
)

// TraceModes is the ordered list of trace modes.
var TraceModes = []string{TraceModeOff, TraceModeSummary, TraceModeFull}

// State backends: the VCS-notes store is always authoritative; the backend
// constant selects the read-index cache implementation sitting beside it.
const (
	StateBackendSQLite = "sqlite"
	StateBackendJSON   = "json"
)

// StateBackends is the ordered list of state-store read-index backends.
var StateBackends = []string{StateBackendSQLite, StateBackendJSON}

// Worktree modes.
const (
	WorktreeModeAlways   = "always"
	WorktreeModeParallel = "parallel"
	WorktreeModeDisabled = "disabled"
)

// WorktreeModes is the ordered list of worktree modes.
var WorktreeModes = []string{WorktreeModeAlways, WorktreeModeParallel, WorktreeModeDisabled}

// Merge strategies used by the Conflict Resolver when merging a task branch
// into staging.
const (
	MergeStrategyMerge  = "merge"
	MergeStrategySquash = "squash"
	MergeStrategyRebase = "rebase"
)

// MergeStrategies is the ordered list of merge strategies.
var MergeStrategies = []string{MergeStrategyMerge, MergeStrategySquash, MergeStrategyRebase}

package config

// DefaultConfigYAML is the starter configuration `zen init` writes out.
const DefaultConfigYAML = `# Zen configuration
# Documentation: https://github.com/TheHiddenLayer/zen/blob/main/docs/CONFIGURATION.md

log:
  level: info
  format: auto

repository:
  path: .
  worktree_base_dir: .zen/worktrees

agents:
  default: claude

  claude:
    enabled: true
    path: claude
    model: claude-opus-4-6
    max_tokens: 8192
    temperature: 0.7

  gemini:
    enabled: false
    path: gemini
    model: gemini-3-pro-preview
    max_tokens: 8192
    temperature: 0.7

  codex:
    enabled: false
    path: codex
    model: gpt-5.3-codex
    max_tokens: 8192
    temperature: 0.7

  copilot:
    enabled: false
    path: copilot
    model: claude-sonnet-4-5
    max_tokens: 8192
    temperature: 0.7

  # Local LLM agent via Ollama (MCP-compatible).
  opencode:
    enabled: false
    path: opencode
    model: qwen2.5-coder
    max_tokens: 8192
    temperature: 0.7

workflow:
  max_parallel_agents: 4
  staging_branch_prefix: "zen/staging/"
  update_docs: true
  planning_timeout: 10m
  implementation_timeout: 30m
  poll_interval: 2s

scheduler:
  session_prefix: zen

health_monitor:
  interval: 15s
  stuck_threshold: 5m
  decompose_line_threshold: 400
  stuck_patterns:
    - "permission denied"
    - "rate limit"
    - "are you sure"

conflict_resolver:
  poll_interval: 2s
  timeout: 10m
  max_resolution_retries: 2

state:
  index_path: .zen/state/index.json
`

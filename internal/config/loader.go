package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v              *viper.Viper
	configFile     string
	envPrefix      string
	envFile        string
	projectDir     string     // Resolved project root directory (set by Load)
	projectDirHint string     // Optional: override project root directory for path resolution
	resolvePaths   bool       // Whether to resolve relative paths to absolute on Load
	mu             sync.Mutex // Protects concurrent access to viper operations
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:            viper.New(),
		envPrefix:    "ZEN",
		envFile:      ".env",
		resolvePaths: true,
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:            v,
		envPrefix:    "ZEN",
		envFile:      ".env",
		resolvePaths: true,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithProjectDir provides a project root directory hint for resolving relative paths.
// This is required for scenarios where the config file is not located under the project
// root (e.g. a global config shared by many projects).
func (l *Loader) WithProjectDir(path string) *Loader {
	l.projectDirHint = path
	return l
}

// WithResolvePaths controls whether relative paths are resolved to absolute paths on Load().
func (l *Loader) WithResolvePaths(resolve bool) *Loader {
	l.resolvePaths = resolve
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithEnvFile sets the dotenv file Load reads before binding environment
// variables. An empty string disables dotenv loading.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
//  1. CLI flags (set via viper.BindPFlag)
//  2. Environment variables (ZEN_*), including those loaded from a .env file
//  3. Project config (.zen/config.yaml)
//  4. Legacy project config (.zen.yaml - flat file in the repo root)
//  5. User config (~/.config/zen/config.yaml)
//  6. Defaults
func (l *Loader) Load() (*Config, error) {
	// Lock to prevent concurrent map writes in viper
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loadDotEnv()

	// Set defaults first
	l.setDefaults()

	// Configure environment variable reading
	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Config file setup
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		// Try new location first: .zen/config.yaml
		newConfigPath := filepath.Join(".zen", "config.yaml")
		if _, err := os.Stat(newConfigPath); err == nil {
			l.v.SetConfigFile(newConfigPath)
		} else {
			// Fall back to legacy flat location: .zen.yaml
			l.v.SetConfigName(".zen")
			l.v.SetConfigType("yaml")

			// Add search paths in precedence order (first found wins)
			l.v.AddConfigPath(".")
			if home, err := os.UserHomeDir(); err == nil {
				l.v.AddConfigPath(filepath.Join(home, ".config", "zen"))
			}
		}
	}

	// Read config file (ignore not found)
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// ignore
		} else if errors.Is(err, os.ErrNotExist) {
			// Explicit config file path does not exist: treat as "no config file" and fall back to defaults.
		} else {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Resolve all relative paths to absolute paths.
	// Use the project root (parent of .zen/) as the base for relative paths.
	projectDir := ""
	if configPath := l.v.ConfigFileUsed(); configPath != "" {
		absConfigPath, err := filepath.Abs(configPath)
		if err == nil {
			configDir := filepath.Dir(absConfigPath)
			// If config is in .zen/ directory, use its parent as project root
			// e.g., /project/.zen/config.yaml -> /project/
			if filepath.Base(configDir) == ".zen" {
				projectDir = filepath.Dir(configDir)
			} else {
				// Legacy .zen.yaml in project root
				projectDir = configDir
			}
		}
	}
	// If no config file found, fall back to current working directory
	if projectDir == "" {
		projectDir, _ = os.Getwd()
	}
	// Override project dir when caller provides a hint (e.g. global config shared by many projects).
	if strings.TrimSpace(l.projectDirHint) != "" {
		projectDir = l.projectDirHint
	}
	l.projectDir = projectDir
	if l.resolvePaths {
		l.resolveAbsolutePaths(&cfg, projectDir)
	}

	return &cfg, nil
}

// loadDotEnv merges variables from l.envFile into the process environment
// before viper reads them, without clobbering variables the caller's shell
// already set. A missing file is not an error; the CLI usually does not
// ship one, so most invocations rely on real environment variables alone.
func (l *Loader) loadDotEnv() {
	if strings.TrimSpace(l.envFile) == "" {
		return
	}
	if _, err := os.Stat(l.envFile); err != nil {
		return
	}
	_ = godotenv.Load(l.envFile)
}

// ProjectDir returns the resolved project root directory.
// This is the directory containing the .zen/ config folder (or CWD as fallback).
// Available after Load() has been called.
func (l *Loader) ProjectDir() string {
	return l.projectDir
}

// resolveAbsolutePaths converts all relative paths in the config to absolute paths.
// Relative paths are resolved relative to baseDir (typically the config file's directory).
// This prevents issues when zen is executed from different working directories.
func (l *Loader) resolveAbsolutePaths(cfg *Config, baseDir string) {
	if cfg.Repository.Path != "" {
		cfg.Repository.Path = resolvePathRelativeTo(cfg.Repository.Path, baseDir)
	}
	if cfg.Repository.WorktreeBaseDir != "" {
		cfg.Repository.WorktreeBaseDir = resolvePathRelativeTo(cfg.Repository.WorktreeBaseDir, baseDir)
	}
	if cfg.State.IndexPath != "" {
		cfg.State.IndexPath = resolvePathRelativeTo(cfg.State.IndexPath, baseDir)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = resolvePathRelativeTo(cfg.Log.File, baseDir)
	}
}

// resolvePathRelativeTo converts a relative path to an absolute path using baseDir as the base.
// If the path is already absolute, it is returned unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	// On Windows, filepath.IsAbs("/unix/path") returns false, but such paths
	// should still be treated as absolute.
	if len(path) > 0 && (path[0] == '/' || path[0] == '\\') {
		return path
	}
	return filepath.Join(baseDir, path)
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("repository.path", ".")
	l.v.SetDefault("repository.worktree_base_dir", ".zen/worktrees")

	// NOTE: agents.default has no default - the caller must configure it explicitly.
	l.v.SetDefault("agents.default", "")
	l.v.SetDefault("agents.claude.enabled", false)
	l.v.SetDefault("agents.claude.path", "claude")
	l.v.SetDefault("agents.claude.max_tokens", 8192)
	l.v.SetDefault("agents.claude.temperature", 0.7)
	l.v.SetDefault("agents.gemini.enabled", false)
	l.v.SetDefault("agents.gemini.path", "gemini")
	l.v.SetDefault("agents.gemini.max_tokens", 8192)
	l.v.SetDefault("agents.gemini.temperature", 0.7)
	l.v.SetDefault("agents.codex.enabled", false)
	l.v.SetDefault("agents.codex.path", "codex")
	l.v.SetDefault("agents.codex.max_tokens", 8192)
	l.v.SetDefault("agents.codex.temperature", 0.7)
	l.v.SetDefault("agents.copilot.enabled", false)
	l.v.SetDefault("agents.copilot.path", "copilot")
	l.v.SetDefault("agents.copilot.max_tokens", 8192)
	l.v.SetDefault("agents.copilot.temperature", 0.7)
	l.v.SetDefault("agents.opencode.enabled", false)
	l.v.SetDefault("agents.opencode.path", "opencode")
	l.v.SetDefault("agents.opencode.max_tokens", 8192)
	l.v.SetDefault("agents.opencode.temperature", 0.7)

	l.v.SetDefault("workflow.max_parallel_agents", 4)
	l.v.SetDefault("workflow.staging_branch_prefix", "zen/staging/")
	l.v.SetDefault("workflow.update_docs", true)
	l.v.SetDefault("workflow.planning_timeout", "10m")
	l.v.SetDefault("workflow.implementation_timeout", "30m")
	l.v.SetDefault("workflow.poll_interval", "2s")

	l.v.SetDefault("scheduler.session_prefix", "zen")

	l.v.SetDefault("health_monitor.interval", "15s")
	l.v.SetDefault("health_monitor.stuck_threshold", "5m")
	l.v.SetDefault("health_monitor.decompose_line_threshold", 400)
	l.v.SetDefault("health_monitor.stuck_patterns", []string{"permission denied", "rate limit", "are you sure"})

	l.v.SetDefault("conflict_resolver.poll_interval", "2s")
	l.v.SetDefault("conflict_resolver.timeout", "10m")
	l.v.SetDefault("conflict_resolver.max_resolution_retries", 2)

	l.v.SetDefault("state.index_path", ".zen/state/index.json")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	if l.configFile != "" {
		return l.configFile
	}
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// Package cmd implements the zen CLI: the single entrypoint that wires
// loaded configuration into an orchestrator.Orchestrator and drives it
// through a workflow's lifecycle (run, status, accept, reject).
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/TheHiddenLayer/zen/internal/config"
	"github.com/TheHiddenLayer/zen/internal/logging"
	"github.com/TheHiddenLayer/zen/internal/telemetry"
)

var (
	cfgFile   string
	repoFlag  string
	logLevel  string
	logFormat string

	appConfig *config.Config
	appLog    *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "zen",
	Short: "Zen turns one natural-language prompt into merged source changes",
	Long: `Zen is a parallel multi-agent orchestrator: it breaks a prompt into a
task graph, spawns one coding-assistant agent per independent task, and
reconciles the results onto a single staging branch.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadAppConfig,
}

// Execute runs the root command. Spans from every package-level
// otel.Tracer(...) call (scheduler, skillloop) are exported to a discarded
// stdout writer for the lifetime of the process: a live provider keeps
// trace-context propagation correct end to end without a table/JSON
// subcommand's output getting interleaved with span dumps.
func Execute() error {
	provider, err := telemetry.NewTracerProvider("zen", io.Discard)
	if err != nil {
		return fmt.Errorf("starting tracer: %w", err)
	}
	defer telemetry.Shutdown(context.Background(), provider)

	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .zen/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "repository path (default: config repository.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: auto, text, json")
}

// loadAppConfig loads configuration once, before any subcommand runs,
// binding the persistent flags above over environment variables and the
// config file (Loader.Load's documented precedence), then rejects it if it
// fails validation.
func loadAppConfig(cmd *cobra.Command, _ []string) error {
	if err := loadAppConfigLenient(cmd); err != nil {
		return err
	}
	if err := config.ValidateConfig(appConfig); err != nil {
		return err
	}
	return nil
}

// loadAppConfigLenient populates appConfig/appLog without enforcing
// ValidateConfig, for commands like doctor that must still run useful
// checks against a config an operator hasn't finished fixing yet.
func loadAppConfigLenient(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}

	v := loader.Viper()
	if err := v.BindPFlag("repository.path", cmd.Root().PersistentFlags().Lookup("repo")); err != nil {
		return fmt.Errorf("binding --repo flag: %w", err)
	}
	if err := v.BindPFlag("log.level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
		return fmt.Errorf("binding --log-level flag: %w", err)
	}
	if err := v.BindPFlag("log.format", cmd.Root().PersistentFlags().Lookup("log-format")); err != nil {
		return fmt.Errorf("binding --log-format flag: %w", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	appConfig = cfg
	appLog = logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return nil
}

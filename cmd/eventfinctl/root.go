package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"eventfin/internal/backend"
	"eventfin/internal/cli"
	"eventfin/internal/config"
	"eventfin/internal/log"
)

var (
	flagBackend string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:          "eventfinctl",
	Short:        "Event finance administration",
	Long:         "Inspect budgets, work the approval queue and repair spend drift against the configured backend.",
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "Override DATA_BACKEND (memory or sqlite)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log at debug level")
}

// loadConfig reads the environment the same way the server does.
func loadConfig() (*config.Config, error) {
	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagBackend != "" {
		cfg.DataBackend = flagBackend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *log.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
}

// openServices is the shared backend path used by all data commands.
// The caller must run the returned cleanup.
func openServices(ctx context.Context) (*backend.BackendResult, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)
	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	}
	return res, cleanup, nil
}

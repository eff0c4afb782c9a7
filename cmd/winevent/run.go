package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/winevent/config"
	"github.com/jpalmerr/winevent/internal/agent"
	"github.com/spf13/cobra"
)

// newLogger creates a JSON logger on stderr. Stdout is left for lines.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// runCmd starts the agent.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tail the event log as configured",
	Long: `Start one reader per configured source and ship their events.

The agent will:
  - Load configuration from the specified YAML file
  - Poll every source for new events at its frequency
  - Write each event as a JSON line to the configured sinks
  - Serve reader status on server.port, when set

The agent runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  winevent run -c config.yaml
  winevent run --config C:\ProgramData\winevent\config.yaml`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = runCmd.MarkFlagRequired("config")
}

func runAgent(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.SlogLevel())

	sources := config.BuildSources(cfg)
	out, db, err := config.BuildSink(cfg)
	if err != nil {
		return fmt.Errorf("failed to open sinks: %w", err)
	}

	opts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithBuffer(cfg.LineBuffer.FlushInterval.Duration(), cfg.LineBuffer.MaxLines),
	}
	if cfg.Server.Port > 0 {
		opts = append(opts, agent.WithServer(cfg.Server.Port))
	}
	if db != nil {
		opts = append(opts, agent.WithLineSource(db))
	}

	a, err := agent.New(sources, out, opts...)
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to create agent: %w", err)
	}

	logger.Info("config loaded",
		"sources", len(sources),
		"stdout", cfg.Sinks.Stdout,
		"file", cfg.Sinks.File,
		"sqlite", cfg.Sinks.SQLite,
		"port", cfg.Server.Port,
	)

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

package main

import (
	"fmt"

	"github.com/jpalmerr/winevent/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the agent.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a winevent configuration file without starting the agent.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  winevent validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	readers := config.BuildSources(cfg)

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Log level:  %s\n", cfg.LogLevel)
	fmt.Printf("  Frequency:  %s\n", cfg.Frequency.Duration())
	fmt.Printf("  Max events: %d\n", cfg.MaxEvents)
	fmt.Printf("  Sources:    %d configured = %d readers\n", len(cfg.Sources), len(readers))
	for _, r := range readers {
		fmt.Printf("    - %s\n", r.Name)
	}
	if cfg.Server.Port > 0 {
		fmt.Printf("  Status API: port %d\n", cfg.Server.Port)
	}

	return nil
}

// Package main is the entry point for the winevent CLI.
//
// winevent can be used as a library or run as a standalone agent driven by
// a YAML configuration file. This CLI provides the standalone agent.
//
// Usage:
//
//	winevent run -c config.yaml            # Tail the event log
//	winevent query -p Application --since 1h # Print recent events once
//	winevent validate -c config.yaml       # Validate configuration
//	winevent version                       # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "winevent",
	Short: "Tail the Windows event log",
	Long: `winevent polls the Windows event log through PowerShell's Get-WinEvent
and ships every new record as a JSON line.

Quick start:
  1. Create a config file (winevent.yaml)
  2. Run: winevent run -c winevent.yaml

Example config:
  frequency: 2s
  sources:
    - name: dns
      providers: [Microsoft-Windows-DNS-Client]
  sinks:
    stdout: true`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this winevent binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "winevent %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

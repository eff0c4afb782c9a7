package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/winevent"
	"github.com/spf13/cobra"
)

// queryCmd runs a single query and prints what it returns.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print recent events once",
	Long: `Query the event log for the recent past and print each event as a JSON
line on stdout. Standard error output of the query is printed to stderr.

Example:
  winevent query -p Microsoft-Windows-DNS-Client
  winevent query -p "Service Control Manager" -p "Application Error" --since 24h`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringSliceP("provider", "p", []string{"Microsoft-Windows-DNS-Client"}, "event log provider (repeatable)")
	queryCmd.Flags().Duration("since", time.Hour, "how far back to query")
	queryCmd.Flags().Int("max-events", 100, "maximum number of events to return")
}

func runQuery(cmd *cobra.Command, args []string) error {
	providers, _ := cmd.Flags().GetStringSlice("provider")
	since, _ := cmd.Flags().GetDuration("since")
	maxEvents, _ := cmd.Flags().GetInt("max-events")

	if since <= 0 {
		return errors.New("--since must be positive")
	}

	r, err := winevent.New(
		winevent.WithName("query"),
		winevent.WithProviders(providers...),
		winevent.WithMaxEvents(maxEvents),
		winevent.WithLogger(newLogger(slog.LevelWarn)),
	)
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	_ = r.OnError(func(text string) {
		fmt.Fprint(cmd.ErrOrStderr(), text)
	})

	end := time.Now()
	events, err := r.QueryOnce(cmd.Context(), winevent.Window{Start: end.Add(-since), End: end})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

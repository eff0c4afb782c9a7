package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/winevent"
	"github.com/jpalmerr/winevent/internal/agent"
	"github.com/jpalmerr/winevent/internal/sink"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	mock := newMockEventLog()

	// one reader for DNS, one per provider for services (see mock_eventlog.go)
	sources := []agent.Source{
		{
			Name: "dns",
			Options: []winevent.Option{
				winevent.WithProviders("Microsoft-Windows-DNS-Client"),
				winevent.WithFrequency(2 * time.Second),
				winevent.WithRunner(mock),
			},
		},
	}
	for _, p := range []string{"Service Control Manager", "Application Error"} {
		sources = append(sources, agent.Source{
			Name: "services/" + p,
			Options: []winevent.Option{
				winevent.WithProviders(p),
				winevent.WithFrequency(5 * time.Second),
				winevent.WithRunner(mock),
			},
		})
	}

	a, err := agent.New(sources, sink.NewJSONLines(os.Stdout),
		agent.WithLogger(logger),
		agent.WithServer(8080),
		agent.WithBuffer(time.Second, 100),
	)
	if err != nil {
		slog.Error("failed to create agent", "error", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  winevent demo")
	fmt.Fprintln(os.Stderr, "    lines:  stdout, one JSON object per event")
	fmt.Fprintln(os.Stderr, "    status: http://localhost:8080/api/status")
	fmt.Fprintln(os.Stderr, "    Press Ctrl+C to stop")
	fmt.Fprintln(os.Stderr)

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		slog.Error("agent error", "error", err)
		os.Exit(1)
	}
}

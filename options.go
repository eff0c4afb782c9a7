package winevent

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/winevent/internal/query"
)

// readerConfig holds mutable state during Reader construction.
type readerConfig struct {
	name           string
	providers      []string
	maxEvents      int
	frequency      time.Duration
	start          time.Time
	end            time.Time
	windowSet      bool
	runner         query.Runner
	logger         *slog.Logger
	now            func() time.Time
	failureHandler func(error)
	cycleCallbacks []func(CycleResult)
}

// Option is a function that configures a [Reader] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*readerConfig) error

// WithName sets the name used to identify the reader in log output.
func WithName(name string) Option {
	return func(cfg *readerConfig) error {
		cfg.name = name
		return nil
	}
}

// WithProviders sets the event log providers to query, in order.
//
// Defaults to Microsoft-Windows-DNS-Client if not specified.
//
// Example:
//
//	r, err := winevent.New(
//	    winevent.WithProviders("Microsoft-Windows-DNS-Client", "Service Control Manager"),
//	)
//
// Returns an error if no providers are given or any name is empty.
func WithProviders(providers ...string) Option {
	return func(cfg *readerConfig) error {
		if len(providers) == 0 {
			return errors.New("at least one provider is required")
		}
		for i, p := range providers {
			if p == "" {
				return fmt.Errorf("provider %d: name cannot be empty", i)
			}
		}
		cfg.providers = append([]string(nil), providers...)
		return nil
	}
}

// WithMaxEvents caps the number of records a single query may return.
//
// Defaults to 100 if not specified. Returns an error if n is not positive.
func WithMaxEvents(n int) Option {
	return func(cfg *readerConfig) error {
		if n <= 0 {
			return errors.New("max events must be positive")
		}
		cfg.maxEvents = n
		return nil
	}
}

// WithFrequency sets the wait between cycles, which is also the width of
// every window after the first. The value is truncated to milliseconds.
//
// Defaults to 10 seconds if not specified.
//
// Example:
//
//	r, err := winevent.New(
//	    winevent.WithProviders("Application Error"),
//	    winevent.WithFrequency(2 * time.Second),
//	)
//
// Returns an error if the duration is shorter than one millisecond.
func WithFrequency(d time.Duration) Option {
	return func(cfg *readerConfig) error {
		d = d.Truncate(time.Millisecond)
		if d <= 0 {
			return errors.New("frequency must be at least 1ms")
		}
		cfg.frequency = d
		return nil
	}
}

// WithWindow sets the first window to query. Later windows are derived from
// the clock.
//
// Defaults to the empty window [now, now) at construction.
//
// Returns an error if end is before start.
func WithWindow(start, end time.Time) Option {
	return func(cfg *readerConfig) error {
		if end.Before(start) {
			return fmt.Errorf("window end %s is before start %s", end, start)
		}
		cfg.start = start
		cfg.end = end
		cfg.windowSet = true
		return nil
	}
}

// WithRunner replaces the PowerShell query runner. Intended for tests and
// for hosts that reach the event log some other way.
//
// Returns an error if r is nil.
func WithRunner(r query.Runner) Option {
	return func(cfg *readerConfig) error {
		if r == nil {
			return errors.New("runner cannot be nil")
		}
		cfg.runner = r
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Reader.
//
// If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	r, err := winevent.New(winevent.WithLogger(logger))
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *readerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithClock sets the function used to read the current time when windows
// advance. Defaults to time.Now.
//
// Returns an error if now is nil.
func WithClock(now func() time.Time) Option {
	return func(cfg *readerConfig) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.now = now
		return nil
	}
}

// WithFailureHandler registers a function called when a cycle fails, which
// happens when the query output is not valid event JSON. The error is a
// *[MalformedOutputError]. The failed window is not retried.
//
// Without a handler failures are only logged. Nil handlers are silently
// ignored.
func WithFailureHandler(fn func(error)) Option {
	return func(cfg *readerConfig) error {
		cfg.failureHandler = fn
		return nil
	}
}

// WithCycleCallback registers a function called after every completed
// cycle. Multiple callbacks run in registration order. Like subscribers,
// callbacks run on the polling goroutine and must not block.
//
// Nil callbacks are silently ignored.
func WithCycleCallback(cb func(CycleResult)) Option {
	return func(cfg *readerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.cycleCallbacks = append(cfg.cycleCallbacks, cb)
		return nil
	}
}

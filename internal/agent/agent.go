// Package agent runs a set of event log readers and ships what they read.
//
// For every configured source the agent builds a [winevent.Reader] and
// wires it up: events become lines in a shared [linebuffer.Buffer], error
// text is logged and recorded in the reader's status, and stopping a reader
// marks it stopped. Status is kept in a [store.MemoryStore] and optionally
// served over HTTP.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/winevent"
	"github.com/jpalmerr/winevent/internal/linebuffer"
	"github.com/jpalmerr/winevent/internal/server"
	"github.com/jpalmerr/winevent/internal/sink"
	"github.com/jpalmerr/winevent/internal/store"
)

const stopTimeout = 10 * time.Second

// ErrAlreadyRun is returned by a second call to [Agent.Run].
var ErrAlreadyRun = errors.New("agent already run")

// Source describes one reader to run.
type Source struct {
	// Name identifies the reader in logs and status. Must be unique.
	Name string

	// Options configure the reader. The agent adds its own name, logger and
	// callbacks after these.
	Options []winevent.Option
}

// Option configures an [Agent].
type Option func(*Agent) error

// WithLogger sets the logger for the agent and every reader it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		a.logger = logger
		return nil
	}
}

// WithServer serves the status API on port while the agent runs.
func WithServer(port int) Option {
	return func(a *Agent) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("port must be between 0 and 65535, got %d", port)
		}
		a.port = port
		a.serve = true
		return nil
	}
}

// WithLineSource lets the status API list recently stored lines.
func WithLineSource(ls server.LineSource) Option {
	return func(a *Agent) error {
		a.lines = ls
		return nil
	}
}

// WithBuffer sets the flush interval and batch size of the line buffer.
// Zero values keep the buffer defaults.
func WithBuffer(flushInterval time.Duration, maxLines int) Option {
	return func(a *Agent) error {
		if flushInterval < 0 || maxLines < 0 {
			return errors.New("line buffer settings cannot be negative")
		}
		a.flushInterval = flushInterval
		a.maxLines = maxLines
		return nil
	}
}

// WithClock sets the time source used for lines whose event has no
// timestamp and for status bookkeeping. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		a.now = now
		return nil
	}
}

// Agent owns a set of readers, the line buffer they feed and the sink
// behind it.
type Agent struct {
	out           sink.Sink
	lines         server.LineSource
	status        *store.MemoryStore
	logger        *slog.Logger
	now           func() time.Time
	port          int
	serve         bool
	flushInterval time.Duration
	maxLines      int

	sources []Source
	readers []*winevent.Reader
	buffer  *linebuffer.Buffer
	ran     atomic.Bool
}

// New validates the sources and builds one reader per source. The agent
// takes ownership of out and closes it when [Agent.Run] returns.
func New(sources []Source, out sink.Sink, opts ...Option) (*Agent, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	if out == nil {
		return nil, errors.New("sink cannot be nil")
	}

	a := &Agent{
		out:    out,
		status: store.NewMemoryStore(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(sources))
	for i, src := range sources {
		if src.Name == "" {
			return nil, fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("duplicate source name: %q", src.Name)
		}
		seen[src.Name] = true
	}
	a.sources = sources

	for i, src := range sources {
		r, err := a.buildReader(src)
		if err != nil {
			return nil, fmt.Errorf("sources[%d] (%s): %w", i, src.Name, err)
		}
		a.readers = append(a.readers, r)
	}

	return a, nil
}

// buildReader creates the reader for src with the agent's callbacks.
func (a *Agent) buildReader(src Source) (*winevent.Reader, error) {
	name := src.Name
	logger := a.logger.With("reader", name)

	opts := append([]winevent.Option{}, src.Options...)
	opts = append(opts,
		winevent.WithName(name),
		winevent.WithLogger(a.logger),
		winevent.WithFailureHandler(func(err error) {
			a.recordError(name, err.Error())
		}),
		winevent.WithCycleCallback(func(res winevent.CycleResult) {
			a.recordCycle(name, res)
		}),
	)

	r, err := winevent.New(opts...)
	if err != nil {
		return nil, err
	}

	if err := r.OnData(func(ev winevent.LogEvent) {
		if err := a.buffer.Add(linebuffer.FromEvent(ev, a.now())); err != nil {
			logger.Debug("line dropped", "error", err)
		}
	}); err != nil {
		return nil, err
	}
	if err := r.OnError(func(text string) {
		logger.Warn("event log error", "error", text)
		a.recordError(name, text)
	}); err != nil {
		return nil, err
	}
	if err := r.OnEnd(func() {
		a.status.Modify(name, func(s *store.ReaderStatus) { s.State = "stopped" })
	}); err != nil {
		return nil, err
	}

	return r, nil
}

// Store returns the status store.
func (a *Agent) Store() store.Store {
	return a.status
}

// Readers returns the readers in source order.
func (a *Agent) Readers() []*winevent.Reader {
	return append([]*winevent.Reader(nil), a.readers...)
}

// Run starts every reader and blocks until ctx is cancelled. It then stops
// the readers, flushes the remaining lines and closes the sink.
//
// Returns an error if the status API or a reader fails to start; readers
// already started are stopped first. Run may only be called once.
func (a *Agent) Run(ctx context.Context) error {
	if !a.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	a.buffer = linebuffer.New(a.out,
		linebuffer.WithFlushInterval(a.flushInterval),
		linebuffer.WithMaxLines(a.maxLines),
		linebuffer.WithLogger(a.logger),
	)

	for i, r := range a.readers {
		a.status.Update(store.ReaderStatus{
			Name:        a.sources[i].Name,
			Providers:   r.Providers(),
			State:       r.State(),
			WindowStart: r.Window().Start,
			WindowEnd:   r.Window().End,
		})
	}

	if a.serve {
		srv := server.NewServer(a.status, a.port, a.lines, a.logger)
		if err := srv.Start(ctx); err != nil {
			a.shutdown(nil)
			return fmt.Errorf("failed to start status api: %w", err)
		}
	}

	for i, r := range a.readers {
		if err := r.Start(ctx); err != nil {
			a.shutdown(a.readers[:i])
			return fmt.Errorf("failed to start reader %q: %w", a.sources[i].Name, err)
		}
	}

	a.logger.Info("agent started", "reader_count", len(a.readers))

	<-ctx.Done()
	a.shutdown(a.readers)
	a.logger.Info("agent stopped")
	return nil
}

// shutdown stops the given readers, then drains the buffer and closes the
// sink.
func (a *Agent) shutdown(started []*winevent.Reader) {
	for _, r := range started {
		r.Stop()
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, r := range started {
		select {
		case <-r.Done():
		case <-waitCtx.Done():
			a.logger.Warn("reader did not stop in time", "reader", r.Name())
		}
	}

	if err := a.buffer.Close(); err != nil {
		a.logger.Error("final line flush failed", "error", err)
	}
	if err := a.out.Close(); err != nil {
		a.logger.Error("failed to close sink", "error", err)
	}
}

func (a *Agent) recordCycle(name string, res winevent.CycleResult) {
	now := a.now()
	a.status.Modify(name, func(s *store.ReaderStatus) {
		s.Cycles++
		s.Events += int64(res.Events)
		s.WindowStart = res.Window.Start
		s.WindowEnd = res.Window.End
		s.LastCycleAt = now
		if s.State != "stopped" {
			s.State = "idle"
		}
	})
}

func (a *Agent) recordError(name, text string) {
	a.status.Modify(name, func(s *store.ReaderStatus) {
		s.LastError = &text
	})
}

package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/winevent/internal/normalize"
	"github.com/jpalmerr/winevent/internal/query"
)

var (
	// ErrAlreadyStarted is returned by [Scheduler.Start] on a second call.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrStopped is returned by [Scheduler.Start] after [Scheduler.Stop].
	ErrStopped = errors.New("scheduler stopped")
)

// MalformedOutputError reports query output that could not be parsed.
//
// A cycle that hits this error emits no events. The scheduler does not retry
// the window; the next cycle queries the following window as usual.
type MalformedOutputError struct {
	// Window is the window whose output was malformed.
	Window Window

	// Output is the raw standard output of the query.
	Output []byte

	// Err is the parse error. It wraps [normalize.ErrMalformed].
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed query output for window %s: %v", e.Window, e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// State is the scheduler's position in its cycle.
type State int32

const (
	// StateIdle means the scheduler is waiting for the next cycle.
	StateIdle State = iota

	// StateQuerying means the external query process is running.
	StateQuerying

	// StateProcessing means output is being normalized and emitted.
	StateProcessing

	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQuerying:
		return "querying"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Window is the half-open interval [Start, End) queried by one cycle.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return "[" + w.Start.Format(time.RFC3339Nano) + ", " + w.End.Format(time.RFC3339Nano) + ")"
}

// Config contains everything a [Scheduler] needs. All fields except Name,
// Now and Logger are required.
type Config struct {
	// Name identifies the scheduler in log output.
	Name string

	// Providers are the event log providers to query, in order.
	Providers []string

	// MaxEvents caps the records returned by one query.
	MaxEvents int

	// Window is the first window to query.
	Window Window

	// Frequency is the wait before each cycle and the width of every window
	// after the first.
	Frequency time.Duration

	// Runner executes the query.
	Runner query.Runner

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger receives cycle diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Handlers receive the scheduler's output. Nil handlers are skipped.
//
// All handlers are called from the scheduler's goroutine, except that
// Stderr may be called from the query runner's stderr goroutine while
// standard output is still being collected.
type Handlers struct {
	// Event is called once per normalized event, in output order.
	Event func(normalize.Event)

	// Stderr is called with each chunk the query writes to standard error,
	// and with the error text when the query cannot be started.
	Stderr func(text string)

	// Failure is called when a cycle fails outright, currently only with a
	// *MalformedOutputError.
	Failure func(err error)

	// Cycle is called after every completed cycle with the window that was
	// queried and the number of events emitted.
	Cycle func(w Window, events int)
}

// Scheduler polls the event log over contiguous time windows.
//
// Each cycle waits Frequency, queries the current window, collects the
// output, normalizes it and emits the events. When the query has finished
// the window advances to [now, now+Frequency), so consecutive windows never
// overlap: the end of one window is at or before the start of the next, and
// the gap between them is the run time of the later query.
//
// Cycles never overlap. A query that hangs stalls the scheduler until it is
// stopped; there is no per-query timeout.
type Scheduler struct {
	name      string
	providers []string
	maxEvents int
	frequency time.Duration
	runner    query.Runner
	now       func() time.Time
	logger    *slog.Logger
	handlers  Handlers

	mu      sync.Mutex
	window  Window
	started bool
	cancel  context.CancelFunc

	state     atomic.Int32
	stopped   atomic.Bool
	cycles    atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

// NewScheduler creates a new [Scheduler]. The scheduler is idle until
// [Scheduler.Start] is called.
func NewScheduler(cfg Config, h Handlers) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name != "" {
		logger = logger.With("reader", cfg.Name)
	}

	return &Scheduler{
		name:      cfg.Name,
		providers: append([]string(nil), cfg.Providers...),
		maxEvents: cfg.MaxEvents,
		frequency: cfg.Frequency,
		runner:    cfg.Runner,
		now:       now,
		logger:    logger,
		handlers:  h,
		window:    cfg.Window,
		done:      make(chan struct{}),
	}
}

// Start launches the polling loop in a background goroutine and returns
// immediately. The first query runs after one Frequency interval.
//
// Start must be called exactly once. A second call returns
// [ErrAlreadyStarted]; a call after [Scheduler.Stop] returns [ErrStopped].
// If ctx is nil, context.Background() is used. Cancelling ctx ends the loop
// like Stop does.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.loop(loopCtx)
	return nil
}

// Stop ends the polling loop.
//
// Stop kills an in-flight query, prevents the pending timer from launching
// another one, and returns without waiting for the loop goroutine; use
// [Scheduler.Done] for that. Once Stop has returned no further Event handler
// call is started. Stop is idempotent, may be called before Start, and may
// be called from inside a handler.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	s.state.Store(int32(StateStopped))

	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !started {
		s.closeOnce.Do(func() { close(s.done) })
	}
}

// Done returns a channel that is closed once the polling loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Window returns the window the next (or current) cycle queries.
func (s *Scheduler) Window() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// State returns the current [State].
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Cycles returns the number of completed cycles.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.closeOnce.Do(func() { close(s.done) })
	defer s.state.Store(int32(StateStopped))

	timer := time.NewTimer(s.frequency)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Stop may land between the timer firing and here
		if s.stopped.Load() || ctx.Err() != nil {
			return
		}

		s.runCycle(ctx)

		if s.stopped.Load() || ctx.Err() != nil {
			return
		}

		s.advance()
		s.setState(StateIdle)
		timer.Reset(s.frequency)
	}
}

// advance moves the window to start now, once the previous query is done.
func (s *Scheduler) advance() {
	now := s.now()
	s.mu.Lock()
	s.window = Window{Start: now, End: now.Add(s.frequency)}
	s.mu.Unlock()
}

// setState records st unless the scheduler has been stopped.
func (s *Scheduler) setState(st State) {
	if s.stopped.Load() {
		return
	}
	s.state.Store(int32(st))
}

// runCycle queries the current window and emits the resulting events.
func (s *Scheduler) runCycle(ctx context.Context) {
	w := s.Window()
	cycleID := uuid.NewString()
	logger := s.logger.With("cycle_id", cycleID)

	q := buildQuery(s.providers, s.maxEvents, w)

	s.setState(StateQuerying)
	logger.Debug("query started",
		"window_start", w.Start,
		"window_end", w.End,
		"providers", q.Providers,
	)

	res, err := s.runner.Run(ctx, q, func(chunk []byte) {
		logger.Warn("query wrote to stderr", "stderr", string(chunk))
		s.stderr(string(chunk))
	})
	s.setState(StateProcessing)

	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("query cancelled")
			return
		}
		logger.Warn("query failed", "error", err)
		s.stderr(err.Error())
		s.completeCycle(w, 0)
		return
	}

	logger.Debug("query finished",
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration.Milliseconds(),
		"bytes", len(res.Stdout),
	)

	if len(bytes.TrimSpace(res.Stdout)) == 0 {
		s.completeCycle(w, 0)
		return
	}

	events, err := normalize.Normalize(res.Stdout)
	if err != nil {
		failure := &MalformedOutputError{Window: w, Output: res.Stdout, Err: err}
		logger.Error("malformed query output", "error", err, "bytes", len(res.Stdout))
		if s.handlers.Failure != nil {
			s.handlers.Failure(failure)
		}
		s.completeCycle(w, 0)
		return
	}

	emitted := 0
	for _, ev := range events {
		if s.stopped.Load() {
			logger.Debug("stopped mid-cycle", "dropped", len(events)-emitted)
			return
		}
		if s.handlers.Event != nil {
			s.handlers.Event(ev)
		}
		emitted++
	}

	logger.Debug("cycle complete", "event_count", emitted)
	s.completeCycle(w, emitted)
}

func (s *Scheduler) completeCycle(w Window, events int) {
	s.cycles.Add(1)
	if s.handlers.Cycle != nil {
		s.handlers.Cycle(w, events)
	}
}

func (s *Scheduler) stderr(text string) {
	if s.handlers.Stderr != nil {
		s.handlers.Stderr(text)
	}
}

// Fetch runs a single query for w outside of any scheduler loop and returns
// the normalized events. Standard error chunks go to onStderr, which may be
// nil. Unparseable output returns a *MalformedOutputError.
func Fetch(ctx context.Context, r query.Runner, providers []string, maxEvents int, w Window, onStderr func(text string)) ([]normalize.Event, error) {
	res, err := r.Run(ctx, buildQuery(providers, maxEvents, w), func(chunk []byte) {
		if onStderr != nil {
			onStderr(string(chunk))
		}
	})
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(res.Stdout)) == 0 {
		return nil, nil
	}

	events, err := normalize.Normalize(res.Stdout)
	if err != nil {
		return nil, &MalformedOutputError{Window: w, Output: res.Stdout, Err: err}
	}
	return events, nil
}

func buildQuery(providers []string, maxEvents int, w Window) query.Query {
	return query.Query{
		Providers: FormatProviders(providers),
		Start:     FormatDate(w.Start),
		End:       FormatDate(w.End),
		MaxEvents: maxEvents,
	}
}

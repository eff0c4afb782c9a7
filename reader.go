package winevent

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/winevent/internal/normalize"
	"github.com/jpalmerr/winevent/internal/poller"
	"github.com/jpalmerr/winevent/internal/query"
)

const (
	defaultProvider  = "Microsoft-Windows-DNS-Client"
	defaultMaxEvents = 100
	defaultFrequency = 10 * time.Second
)

// Reader polls the Windows event log over a sliding time window and
// delivers every record to its subscribers.
//
// A Reader is created with [New], configured with subscribers through
// [Reader.On] (or the typed helpers), started once with [Reader.Start] and
// ended with [Reader.Stop]:
//
//	r, err := winevent.New(winevent.WithProviders("Microsoft-Windows-DNS-Client"))
//	if err != nil {
//	    return err
//	}
//	r.OnData(func(ev winevent.LogEvent) { fmt.Println(ev.Message) })
//	r.OnError(func(text string) { log.Print(text) })
//
//	if err := r.Start(ctx); err != nil {
//	    return err
//	}
//	defer r.Stop()
//
// Each cycle waits one frequency interval, runs Get-WinEvent for the current
// window and emits the records in the order PowerShell returned them. Windows
// are contiguous and never overlap. All subscribers run on the polling
// goroutine and must not block.
type Reader struct {
	name           string
	providers      []string
	maxEvents      int
	frequency      time.Duration
	runner         query.Runner
	logger         *slog.Logger
	failureHandler func(error)
	cycleCallbacks []func(CycleResult)
	scheduler      *poller.Scheduler

	mu   sync.RWMutex
	data []func(LogEvent)
	errs []func(string)
	ends []func()

	// emitMu is held from the stop check until a data subscriber returns.
	// inData is set while that subscriber runs so Stop called from inside
	// it does not wait on itself.
	emitMu  sync.Mutex
	stopped atomic.Bool
	inData  atomic.Bool
}

// New creates a new [Reader] with the given options.
//
// Options have defaults matching a plain DNS client watcher:
//   - Providers: Microsoft-Windows-DNS-Client
//   - Max events: 100
//   - Frequency: 10 seconds
//   - First window: [now, now)
//   - Runner: powershell on PATH
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Reader, error) {
	cfg := &readerConfig{
		providers: []string{defaultProvider},
		maxEvents: defaultMaxEvents,
		frequency: defaultFrequency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.now == nil {
		cfg.now = time.Now
	}
	if !cfg.windowSet {
		now := cfg.now()
		cfg.start, cfg.end = now, now
	}
	if cfg.runner == nil {
		cfg.runner = query.NewPowerShellRunner()
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reader{
		name:           cfg.name,
		providers:      cfg.providers,
		maxEvents:      cfg.maxEvents,
		frequency:      cfg.frequency,
		runner:         cfg.runner,
		logger:         logger,
		failureHandler: cfg.failureHandler,
		cycleCallbacks: cfg.cycleCallbacks,
	}

	r.scheduler = poller.NewScheduler(poller.Config{
		Name:      cfg.name,
		Providers: cfg.providers,
		MaxEvents: cfg.maxEvents,
		Window:    Window{Start: cfg.start, End: cfg.end},
		Frequency: cfg.frequency,
		Runner:    cfg.runner,
		Now:       cfg.now,
		Logger:    logger,
	}, poller.Handlers{
		Event:   r.emitData,
		Stderr:  r.emitError,
		Failure: r.handleFailure,
		Cycle:   r.handleCycle,
	})

	return r, nil
}

// On registers cb as a subscriber of the given kind.
//
// The callback must have the shape the kind requires: func([LogEvent]) for
// [KindData], func(string) for [KindError] and func() for [KindEnd]. Named
// function types with the same signature are accepted too.
// Returns [ErrInvalidCallback] for a nil or mistyped callback and
// [ErrUnknownSubscriberKind] for any other kind. Subscribers may be added
// before or after Start and are never removed.
func (r *Reader) On(kind SubscriberKind, cb any) error {
	switch kind {
	case KindData:
		fn, ok := asFunc[func(LogEvent)](cb)
		if !ok {
			return ErrInvalidCallback
		}
		return r.OnData(fn)
	case KindError:
		fn, ok := asFunc[func(string)](cb)
		if !ok {
			return ErrInvalidCallback
		}
		return r.OnError(fn)
	case KindEnd:
		fn, ok := asFunc[func()](cb)
		if !ok {
			return ErrInvalidCallback
		}
		return r.OnEnd(fn)
	default:
		return ErrUnknownSubscriberKind
	}
}

// asFunc returns cb as the function type F, converting values whose type
// is a named function type with F's signature.
func asFunc[F any](cb any) (F, bool) {
	var zero F
	if fn, ok := cb.(F); ok {
		return fn, true
	}
	v := reflect.ValueOf(cb)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return zero, false
	}
	target := reflect.TypeOf(zero)
	if !v.Type().ConvertibleTo(target) {
		return zero, false
	}
	return v.Convert(target).Interface().(F), true
}

// OnData registers a subscriber called once per event.
func (r *Reader) OnData(fn func(LogEvent)) error {
	if fn == nil {
		return ErrInvalidCallback
	}
	r.mu.Lock()
	r.data = append(r.data, fn)
	r.mu.Unlock()
	return nil
}

// OnError registers a subscriber called with each chunk of text the query
// writes to standard error, and with the error text when the query cannot
// be started at all.
func (r *Reader) OnError(fn func(string)) error {
	if fn == nil {
		return ErrInvalidCallback
	}
	r.mu.Lock()
	r.errs = append(r.errs, fn)
	r.mu.Unlock()
	return nil
}

// OnEnd registers a subscriber called once for every [Reader.Stop] call.
func (r *Reader) OnEnd(fn func()) error {
	if fn == nil {
		return ErrInvalidCallback
	}
	r.mu.Lock()
	r.ends = append(r.ends, fn)
	r.mu.Unlock()
	return nil
}

// Start launches the polling loop and returns immediately.
//
// The first query runs one frequency interval after Start. Start must be
// called once: a second call returns [ErrAlreadyStarted] and a call after
// [Reader.Stop] returns [ErrStopped]. Cancelling ctx ends polling like Stop
// does, except that end subscribers are not notified.
func (r *Reader) Start(ctx context.Context) error {
	if err := r.scheduler.Start(ctx); err != nil {
		return err
	}
	r.logger.Info("reader started",
		"reader", r.name,
		"providers", r.providers,
		"frequency", r.frequency.String(),
		"max_events", r.maxEvents,
	)
	return nil
}

// Stop ends polling.
//
// Stop kills a query that is still running, prevents any further query and
// then calls every end subscriber. No data subscriber call begins after Stop
// returns; a data call that had already passed its stop check when Stop
// was called from another goroutine may delay Stop until it returns.
// Stop may be called more than once, before Start, and from inside a
// subscriber; end subscribers are notified on every call.
func (r *Reader) Stop() {
	r.stopped.Store(true)
	if !r.inData.Load() {
		// wait out a data call that passed the stop check
		r.emitMu.Lock()
		r.emitMu.Unlock()
	}
	r.scheduler.Stop()

	r.mu.RLock()
	ends := append([]func(){}, r.ends...)
	r.mu.RUnlock()

	for _, fn := range ends {
		r.invokeSafe(KindEnd, fn)
	}
}

// Done returns a channel closed once the polling goroutine has exited.
func (r *Reader) Done() <-chan struct{} {
	return r.scheduler.Done()
}

// QueryOnce queries a single window synchronously and returns its events.
// It does not touch the polling window or notify data subscribers; standard
// error output still goes to error subscribers. QueryOnce may be used
// whether or not the Reader has been started.
func (r *Reader) QueryOnce(ctx context.Context, w Window) ([]LogEvent, error) {
	events, err := poller.Fetch(ctx, r.runner, r.providers, r.maxEvents, w, r.emitError)
	if err != nil {
		return nil, err
	}
	out := make([]LogEvent, len(events))
	for i, ev := range events {
		out[i] = toLogEvent(ev)
	}
	return out, nil
}

// Name returns the name set with [WithName].
func (r *Reader) Name() string {
	return r.name
}

// Providers returns a copy of the configured providers.
func (r *Reader) Providers() []string {
	return append([]string(nil), r.providers...)
}

// MaxEvents returns the per-query record cap.
func (r *Reader) MaxEvents() int {
	return r.maxEvents
}

// Frequency returns the interval between cycles.
func (r *Reader) Frequency() time.Duration {
	return r.frequency
}

// Window returns the window the next (or current) cycle queries.
func (r *Reader) Window() Window {
	return r.scheduler.Window()
}

// State returns "idle", "querying", "processing" or "stopped".
func (r *Reader) State() string {
	return r.scheduler.State().String()
}

// Cycles returns the number of completed polling cycles.
func (r *Reader) Cycles() int64 {
	return r.scheduler.Cycles()
}

func (r *Reader) emitData(ev normalize.Event) {
	r.mu.RLock()
	subs := append([]func(LogEvent){}, r.data...)
	r.mu.RUnlock()

	if len(subs) == 0 {
		return
	}
	le := toLogEvent(ev)
	for _, fn := range subs {
		if !r.callData(fn, le) {
			return
		}
	}
}

// callData invokes fn unless the reader has been stopped. The stop check and
// the call happen under emitMu so no call begins after Stop returns.
func (r *Reader) callData(fn func(LogEvent), ev LogEvent) bool {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	if r.stopped.Load() {
		return false
	}
	r.inData.Store(true)
	defer r.inData.Store(false)
	r.invokeSafe(KindData, func() { fn(ev) })
	return true
}

func (r *Reader) emitError(text string) {
	r.mu.RLock()
	subs := append([]func(string){}, r.errs...)
	r.mu.RUnlock()

	for _, fn := range subs {
		r.invokeSafe(KindError, func() { fn(text) })
	}
}

func (r *Reader) handleFailure(err error) {
	if r.failureHandler == nil {
		return
	}
	r.invokeSafe("failure", func() { r.failureHandler(err) })
}

func (r *Reader) handleCycle(w poller.Window, events int) {
	res := CycleResult{Window: w, Events: events}
	for _, cb := range r.cycleCallbacks {
		r.invokeSafe("cycle", func() { cb(res) })
	}
}

// invokeSafe calls fn with panic recovery. Panics are logged with a
// correlation id but do not propagate.
func (r *Reader) invokeSafe(kind SubscriberKind, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber panicked",
				"panic", rec,
				"panic_id", uuid.NewString(),
				"kind", string(kind),
				"reader", r.name,
			)
		}
	}()
	fn()
}

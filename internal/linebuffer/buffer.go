package linebuffer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultFlushInterval = time.Second
	defaultMaxLines      = 500
	flushTimeout         = 30 * time.Second
)

// ErrClosed is returned by [Buffer.Add] after [Buffer.Close].
var ErrClosed = errors.New("line buffer closed")

// Writer receives flushed batches. Write is never called concurrently by a
// single [Buffer].
type Writer interface {
	Write(ctx context.Context, lines []Line) error
}

// Option configures a [Buffer].
type Option func(*Buffer)

// WithFlushInterval sets how often pending lines are flushed. Values of zero
// or less keep the default of one second.
func WithFlushInterval(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithMaxLines sets the batch size that triggers an immediate flush. Values
// of zero or less keep the default of 500.
func WithMaxLines(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxLines = n
		}
	}
}

// WithLogger sets the logger used to report flush failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Buffer) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Buffer accumulates lines and flushes them to a [Writer] in the background.
//
// A failed flush is logged and its lines are dropped; producers calling
// [Buffer.Add] are never blocked by a slow or failing writer beyond the
// short lock that appends the line.
type Buffer struct {
	out      Writer
	interval time.Duration
	maxLines int
	logger   *slog.Logger

	mu      sync.Mutex
	pending []Line
	closed  bool

	flushMu sync.Mutex
	kick    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New creates a [Buffer] writing to out and starts its flush goroutine.
// Call [Buffer.Close] to flush the remainder and stop it.
func New(out Writer, opts ...Option) *Buffer {
	b := &Buffer{
		out:      out,
		interval: defaultFlushInterval,
		maxLines: defaultMaxLines,
		logger:   slog.Default(),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// Add appends line to the pending batch. A full batch is flushed by the
// background goroutine without waiting for the next interval.
func (b *Buffer) Add(line Line) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.pending = append(b.pending, line)
	full := len(b.pending) >= b.maxLines
	b.mu.Unlock()

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
			// a flush is already queued
		}
	}
	return nil
}

// Len returns the number of pending lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush writes all pending lines now.
func (b *Buffer) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	lines := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(lines) == 0 {
		return nil
	}
	return b.out.Write(ctx, lines)
}

// Close stops the flush goroutine after writing any pending lines. It
// returns the error of that last flush. Close is idempotent.
func (b *Buffer) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.done)
	})
	<-b.stopped

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	return b.Flush(ctx)
}

func (b *Buffer) run() {
	defer close(b.stopped)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
		case <-b.kick:
		}
		b.flushLogged()
	}
}

func (b *Buffer) flushLogged() {
	n := b.Len()
	if n == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := b.Flush(ctx); err != nil {
		b.logger.Error("line flush failed", "error", err, "line_count", n)
	}
}

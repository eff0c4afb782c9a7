package sink

import (
	"context"
	"errors"

	"github.com/jpalmerr/winevent/internal/linebuffer"
)

// Multi fans out batches to several sinks. A failing sink does not prevent
// delivery to the sinks after it.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a [Multi] writing to the given sinks in order.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Write delivers lines to every sink and joins their errors.
func (m *Multi) Write(ctx context.Context, lines []linebuffer.Line) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, lines); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

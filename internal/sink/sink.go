// Package sink provides destinations for batches of log lines.
package sink

import (
	"context"

	"github.com/jpalmerr/winevent/internal/linebuffer"
)

// Sink receives flushed line batches.
type Sink interface {
	Write(ctx context.Context, lines []linebuffer.Line) error
	Close() error
}

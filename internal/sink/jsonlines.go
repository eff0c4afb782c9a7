package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jpalmerr/winevent/internal/linebuffer"
)

// JSONLines writes one JSON object per line.
type JSONLines struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
	f   *os.File
}

// NewJSONLines creates a sink writing to w. Close flushes but never closes w.
func NewJSONLines(w io.Writer) *JSONLines {
	bw := bufio.NewWriter(w)
	return &JSONLines{w: bw, enc: json.NewEncoder(bw)}
}

// OpenFile creates a sink appending to the file at path, creating it if
// needed. Close closes the file.
func OpenFile(path string) (*JSONLines, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open line file %s: %w", path, err)
	}
	s := NewJSONLines(f)
	s.f = f
	return s, nil
}

// Write encodes every line and flushes the batch.
func (s *JSONLines) Write(_ context.Context, lines []linebuffer.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range lines {
		if err := s.enc.Encode(l); err != nil {
			return fmt.Errorf("encode line: %w", err)
		}
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush lines: %w", err)
	}
	return nil
}

// Close flushes buffered output and closes the file, if the sink owns one.
func (s *JSONLines) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.w.Flush()
	if s.f != nil {
		if cerr := s.f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close line output: %w", err)
	}
	return nil
}

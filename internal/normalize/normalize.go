package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned when query output is not a JSON object, an array
// of objects, or null.
var ErrMalformed = errors.New("malformed event output")

// utf8BOM is prepended by some PowerShell hosts when stdout is redirected.
var utf8BOM = []byte("\xef\xbb\xbf")

// Event is a normalized event log record.
type Event struct {
	ID               int
	ProviderName     string
	ProviderID       string
	LogName          string
	ProcessID        int
	ThreadID         int
	MachineName      string
	TimeCreated      time.Time
	LevelDisplayName string
	Message          string
}

// record mirrors the subset of EventLogRecord properties that ConvertTo-Json
// serializes and that we keep. Names follow the .NET property names.
type record struct {
	ID               int    `json:"Id"`
	ProviderName     string `json:"ProviderName"`
	ProviderID       string `json:"ProviderId"`
	LogName          string `json:"LogName"`
	ProcessID        int    `json:"ProcessId"`
	ThreadID         int    `json:"ThreadId"`
	MachineName      string `json:"MachineName"`
	TimeCreated      string `json:"TimeCreated"`
	LevelDisplayName string `json:"LevelDisplayName"`
	Message          string `json:"Message"`
}

// Normalize parses query output and projects every record onto an [Event].
//
// A single JSON object yields one event; an array yields one event per
// object, in order. Blank output, null, and an empty array yield no events
// and no error. Anything else returns an error wrapping [ErrMalformed].
func Normalize(data []byte) ([]Event, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, nil
	}

	var records []*record
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	case '{':
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		records = []*record{&rec}
	default:
		if bytes.Equal(data, []byte("null")) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: expected a JSON object or array, got %q", ErrMalformed, preview(data))
	}

	events := make([]Event, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		events = append(events, rec.event())
	}
	return events, nil
}

func (r *record) event() Event {
	return Event{
		ID:               r.ID,
		ProviderName:     r.ProviderName,
		ProviderID:       r.ProviderID,
		LogName:          r.LogName,
		ProcessID:        r.ProcessID,
		ThreadID:         r.ThreadID,
		MachineName:      r.MachineName,
		TimeCreated:      ParseTimeCreated(r.TimeCreated),
		LevelDisplayName: r.LevelDisplayName,
		Message:          r.Message,
	}
}

// preview returns at most the first 32 bytes of b for error messages.
func preview(b []byte) string {
	const previewLen = 32
	if len(b) > previewLen {
		return string(b[:previewLen]) + "..."
	}
	return string(b)
}

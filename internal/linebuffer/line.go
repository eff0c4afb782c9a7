package linebuffer

import (
	"time"

	"github.com/jpalmerr/winevent"
)

// KindLog is the kind of every line produced from an event log record.
const KindLog = "log"

// Line is one log line as handed to sinks.
type Line struct {
	// Kind is always [KindLog] for event log records.
	Kind string `json:"kind"`

	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// Text is the event message.
	Text string `json:"text"`

	// Source is the provider that wrote the event.
	Source string `json:"source"`
}

// FromEvent converts ev to a [Line]. The timestamp is the event's creation
// time, or now when the record carried no usable timestamp.
func FromEvent(ev winevent.LogEvent, now time.Time) Line {
	ts := ev.TimeCreated
	if ts.IsZero() {
		ts = now
	}
	return Line{
		Kind:      KindLog,
		Timestamp: ts.UnixMilli(),
		Text:      ev.Message,
		Source:    ev.ProviderName,
	}
}

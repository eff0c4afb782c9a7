package winevent

import (
	"time"

	"github.com/jpalmerr/winevent/internal/normalize"
	"github.com/jpalmerr/winevent/internal/poller"
)

// LogEvent is a normalized event log record.
//
// LogEvent is a flat projection of the record Get-WinEvent returns: only the
// fields below are kept. A LogEvent is built fresh for every record in every
// cycle and is delivered to subscribers by value.
type LogEvent struct {
	// ID is the event identifier (the Windows "Event ID").
	ID int `json:"id"`

	// ProviderName is the name of the provider that wrote the event.
	ProviderName string `json:"providerName"`

	// ProviderID is the provider GUID, if the record has one.
	ProviderID string `json:"providerId"`

	// LogName is the channel the event was written to, e.g. "System".
	LogName string `json:"logName"`

	// ProcessID is the ID of the process that wrote the event.
	ProcessID int `json:"processId"`

	// ThreadID is the ID of the thread that wrote the event.
	ThreadID int `json:"threadId"`

	// MachineName is the host the event was recorded on.
	MachineName string `json:"machineName"`

	// TimeCreated is when the event was recorded. It is the zero time when
	// the record's timestamp could not be decoded.
	TimeCreated time.Time `json:"timeCreated"`

	// LevelDisplayName is the localized level, e.g. "Warning".
	LevelDisplayName string `json:"levelDisplayName"`

	// Message is the rendered event message. It may span several lines.
	Message string `json:"message"`
}

// Window is the half-open interval [Start, End) queried by one cycle.
type Window = poller.Window

// CycleResult describes one completed polling cycle.
type CycleResult struct {
	// Window is the interval that was queried.
	Window Window

	// Events is the number of events emitted to data subscribers.
	Events int
}

// SubscriberKind names one of the three subscriber lists of a [Reader].
type SubscriberKind string

const (
	// KindData subscribers receive every [LogEvent], one call per event.
	// The callback must be a func(LogEvent).
	KindData SubscriberKind = "data"

	// KindError subscribers receive the raw text of every chunk the query
	// writes to standard error. The callback must be a func(string).
	KindError SubscriberKind = "error"

	// KindEnd subscribers are notified once per [Reader.Stop] call.
	// The callback must be a func().
	KindEnd SubscriberKind = "end"
)

// toLogEvent converts a normalized record to the public type.
func toLogEvent(ev normalize.Event) LogEvent {
	return LogEvent{
		ID:               ev.ID,
		ProviderName:     ev.ProviderName,
		ProviderID:       ev.ProviderID,
		LogName:          ev.LogName,
		ProcessID:        ev.ProcessID,
		ThreadID:         ev.ThreadID,
		MachineName:      ev.MachineName,
		TimeCreated:      ev.TimeCreated,
		LevelDisplayName: ev.LevelDisplayName,
		Message:          ev.Message,
	}
}

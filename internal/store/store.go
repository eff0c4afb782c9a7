package store

import "time"

// ReaderStatus is the current state of one event log reader.
//
// ReaderStatus is the storage representation used by the status API and
// SSE stream. It is decoupled from the reader types so either can change
// independently.
type ReaderStatus struct {
	// Name is the configured source name.
	Name string `json:"name"`

	// Providers are the event log providers the reader queries.
	Providers []string `json:"providers"`

	// State is "idle", "querying", "processing" or "stopped".
	State string `json:"state"`

	// Cycles is the number of completed polling cycles.
	Cycles int64 `json:"cycles"`

	// Events is the total number of events delivered.
	Events int64 `json:"events"`

	// WindowStart and WindowEnd bound the last window queried.
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	// LastCycleAt is when the last cycle completed.
	LastCycleAt time.Time `json:"last_cycle_at"`

	// LastError is the last text reported on the error channel, or the last
	// cycle failure. nil means none has been seen.
	LastError *string `json:"last_error"`
}

// Store defines the interface for storing and subscribing to reader status.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Update stores a status and notifies all subscribers.
	// The status is keyed by Name, so subsequent updates replace previous values.
	Update(status ReaderStatus)

	// Modify applies fn to the stored status for name (the zero value with
	// Name set if there is none), stores the result and notifies subscribers.
	Modify(name string, fn func(*ReaderStatus))

	// Get returns the stored status for name.
	Get(name string) (ReaderStatus, bool)

	// GetAll returns all stored statuses ordered by name.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []ReaderStatus

	// Subscribe returns a channel that receives status updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan ReaderStatus

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan ReaderStatus)
}

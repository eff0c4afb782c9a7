package store

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Statuses are keyed by reader name, with new values
// replacing previous ones.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber so a stalled client cannot hold up a reader.
type MemoryStore struct {
	mu          sync.RWMutex
	statuses    map[string]ReaderStatus
	subscribers map[chan ReaderStatus]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses:    make(map[string]ReaderStatus),
		subscribers: make(map[chan ReaderStatus]struct{}),
	}
}

// Update stores a [ReaderStatus] and notifies all subscribers.
func (m *MemoryStore) Update(status ReaderStatus) {
	status = clone(status)

	m.mu.Lock()
	m.statuses[status.Name] = status
	m.mu.Unlock()

	m.notifySubscribers(status)
}

// Modify applies fn to the status stored under name and stores the result.
// The read, fn and write happen under one lock, so concurrent Modify calls
// for the same reader never lose each other's changes.
func (m *MemoryStore) Modify(name string, fn func(*ReaderStatus)) {
	m.mu.Lock()
	status, ok := m.statuses[name]
	if !ok {
		status = ReaderStatus{Name: name}
	} else {
		status = clone(status)
	}
	fn(&status)
	status.Name = name
	m.statuses[name] = status
	m.mu.Unlock()

	m.notifySubscribers(clone(status))
}

// Get returns the status stored under name.
func (m *MemoryStore) Get(name string) (ReaderStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[name]
	if !ok {
		return ReaderStatus{}, false
	}
	return clone(status), true
}

// GetAll returns a snapshot of all stored statuses ordered by name.
func (m *MemoryStore) GetAll() []ReaderStatus {
	m.mu.RLock()
	results := make([]ReaderStatus, 0, len(m.statuses))
	for _, status := range m.statuses {
		results = append(results, clone(status))
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan ReaderStatus {
	ch := make(chan ReaderStatus, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan ReaderStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the status to all active subscribers without
// blocking.
func (m *MemoryStore) notifySubscribers(status ReaderStatus) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// subscriber is slow, drop the message
		}
	}
}

// clone copies the mutable fields of s.
func clone(s ReaderStatus) ReaderStatus {
	if s.Providers != nil {
		s.Providers = append([]string(nil), s.Providers...)
	}
	if s.LastError != nil {
		e := *s.LastError
		s.LastError = &e
	}
	return s
}

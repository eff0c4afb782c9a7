// Package store keeps the latest status of every running reader and fans
// updates out to subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [ReaderStatus]: Storage representation of one reader's state
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the readers).
package store

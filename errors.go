package winevent

import (
	"errors"

	"github.com/jpalmerr/winevent/internal/normalize"
	"github.com/jpalmerr/winevent/internal/poller"
)

var (
	// ErrInvalidCallback is returned when a subscriber is nil or does not
	// have the function type its [SubscriberKind] requires.
	ErrInvalidCallback = errors.New("invalid callback")

	// ErrUnknownSubscriberKind is returned by [Reader.On] for a kind other
	// than data, error or end.
	ErrUnknownSubscriberKind = errors.New("unknown subscriber kind")

	// ErrAlreadyStarted is returned by a second call to [Reader.Start].
	ErrAlreadyStarted = poller.ErrAlreadyStarted

	// ErrStopped is returned by [Reader.Start] after [Reader.Stop].
	ErrStopped = poller.ErrStopped

	// ErrMalformedOutput is wrapped by every [MalformedOutputError].
	ErrMalformedOutput = normalize.ErrMalformed
)

// MalformedOutputError reports a cycle whose query output was not valid
// event JSON. The cycle emits no events; polling continues with the next
// window. Use [WithFailureHandler] to observe these errors.
type MalformedOutputError = poller.MalformedOutputError

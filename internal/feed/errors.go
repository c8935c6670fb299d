package feed

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotReady           = errors.New("session not ready")
	ErrChannelSubscriptionFailed = errors.New("channel subscription failed")
	// ErrHydrationFailed is logged only; the fallback view is delivered instead.
	ErrHydrationFailed    = errors.New("hydration failed")
	ErrPollFetchFailed    = errors.New("poll fetch failed")
	ErrConsumerCallback   = errors.New("consumer callback failed")
	ErrClientConstruction = errors.New("realtime client construction failed")

	ErrNotStarted     = errors.New("feed manager not started")
	ErrMalformedEvent = errors.New("malformed event")
)

// Error attaches a failure kind and feed to a cause. errors.Is matches both
// the kind and anything the cause wraps.
type Error struct {
	Kind error
	Feed Feed
	Err  error
}

func newError(kind error, feed Feed, err error) *Error {
	return &Error{Kind: kind, Feed: feed, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Feed, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Feed, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

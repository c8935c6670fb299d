package runctx

import (
	"context"
	"errors"

	"feedsync/internal/logging"
)

// ErrFull is returned by TrySend when the buffer has no room.
var ErrFull = errors.New("channel buffer full")

// RecvOrDone receives from in until ctx ends. The bool is false once the
// loop named name should stop.
func RecvOrDone[T any](ctx context.Context, name string, logger *logging.Logger, in <-chan T) (T, bool) {
	if logger == nil {
		panic("runctx.RecvOrDone: logger must not be nil")
	}
	var zero T
	select {
	case <-ctx.Done():
		logger.Debug("stopping "+name+": context canceled", logging.Field("error", ctx.Err()))
		return zero, false
	case v, ok := <-in:
		if !ok {
			logger.Debug("stopping " + name + ": input channel closed")
			return zero, false
		}
		return v, true
	}
}

// TrySend queues value without blocking the caller.
func TrySend[T any](out chan<- T, value T) error {
	select {
	case out <- value:
		return nil
	default:
		return ErrFull
	}
}

// Offer queues value without blocking, evicting the oldest queued value
// while ch is full. Use it where only recent values matter.
func Offer[T any](ch chan T, value T) {
	for {
		if TrySend(ch, value) == nil {
			return
		}
		select {
		case <-ch:
		default:
		}
	}
}

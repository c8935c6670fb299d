// Package instance keeps a second copy of feedsync from running against the
// same user profile.
package instance

import "errors"

// ErrAlreadyRunning is returned by Acquire when another process holds the
// lock.
var ErrAlreadyRunning = errors.New("feedsync is already running")

// Lock is held until Release. A nil Lock releases as a no-op.
type Lock struct {
	release func() error
}

func (l *Lock) Release() error {
	if l == nil || l.release == nil {
		return nil
	}
	release := l.release
	l.release = nil
	return release()
}

//go:build !windows

package instance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Acquire takes the lock file named name under the user config directory.
func Acquire(name string) (*Lock, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}
	return acquireIn(filepath.Join(root, "feedsync"), name)
}

func acquireIn(dir, name string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(dir, name+".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &Lock{release: func() error {
		if err := fl.Unlock(); err != nil {
			return fmt.Errorf("unlock %s: %w", fl.Path(), err)
		}
		return nil
	}}, nil
}

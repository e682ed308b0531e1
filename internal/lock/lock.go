// Package lock serializes installs of the same target across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultRetryDelay is how often a held lock is polled.
const DefaultRetryDelay = 200 * time.Millisecond

// ErrLocked is returned when the lock could not be taken before the context
// ended.
var ErrLocked = errors.New("lock is held by another process")

// Lock is an advisory file lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// PathFor returns the lock file used for target.
func PathFor(target string) string {
	return filepath.Clean(target) + ".lock"
}

// Acquire takes the lock at path, waiting until it is free or ctx ends.
// The parent directory is created if needed.
func Acquire(ctx context.Context, path string, retryDelay time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks the lock. The lock file stays on disk: removing it would
// let a waiter holding the old file and a newcomer creating a fresh one both
// believe they own the lock.
func (l *Lock) Release() error {
	if l.fl == nil {
		return nil
	}

	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	l.fl = nil
	return nil
}

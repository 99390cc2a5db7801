package flock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/projecteru2/shuttle/lock"
)

const retryDelay = 200 * time.Millisecond

// compile-time interface check.
var _ lock.Locker = (*Lock)(nil)

// Lock is an flock(2) on a file of the control node. It excludes other
// processes on the same machine only; a second control node is not seen.
// The parent directory is created on first acquisition.
type Lock struct {
	path string

	mu sync.Mutex
	// fl is non-nil while the lock is held.
	fl *flock.Flock
}

// New creates a Lock for the given path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *Lock) Lock(ctx context.Context) error {
	ok, err := l.acquire(func(fl *flock.Flock) (bool, error) {
		return fl.TryLockContext(ctx, retryDelay)
	})
	if err != nil {
		return fmt.Errorf("acquire flock %s: %w", l.path, err)
	}
	if !ok {
		if ctx.Err() == nil {
			return fmt.Errorf("acquire flock %s: already held", l.path)
		}
		return fmt.Errorf("acquire flock %s: %w", l.path, ctx.Err())
	}
	return nil
}

// TryLock returns (false, nil) when the lock is held elsewhere, including
// by this same Lock.
func (l *Lock) TryLock(_ context.Context) (bool, error) {
	return l.acquire(func(fl *flock.Flock) (bool, error) {
		return fl.TryLock()
	})
}

// Unlock releases the lock. Unlocking a Lock that is not held is a no-op.
// The lock file is left in place.
func (l *Lock) Unlock(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fl == nil {
		return nil
	}
	err := l.fl.Unlock()
	l.fl = nil
	if err != nil {
		return fmt.Errorf("release flock %s: %w", l.path, err)
	}
	return nil
}

func (l *Lock) acquire(fn func(*flock.Flock) (bool, error)) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fl != nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(l.path)
	ok, err := fn(fl)
	if err != nil || !ok {
		return false, err
	}
	l.fl = fl
	return true, nil
}

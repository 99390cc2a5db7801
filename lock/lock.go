package lock

import (
	"context"
	"errors"
	"fmt"

	"github.com/projecteru2/core/log"
)

// ErrHeld is returned by TryAcquire when someone else holds the lock.
var ErrHeld = errors.New("lock held by another process")

// Locker provides mutual exclusion with context support.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	TryLock(ctx context.Context) (bool, error)
}

// TryAcquire takes l without waiting. The returned release func unlocks it
// and only logs a failure, so it can be deferred.
func TryAcquire(ctx context.Context, l Locker, what string) (func(), error) {
	ok, err := l.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", what, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", what, ErrHeld)
	}
	return func() {
		if err := l.Unlock(context.WithoutCancel(ctx)); err != nil {
			log.WithFunc("lock.release").Warnf(ctx, "unlock %s: %v", what, err)
		}
	}, nil
}

// WithLock runs fn while holding l, waiting for it if needed.
func WithLock(ctx context.Context, l Locker, fn func() error) error {
	if err := l.Lock(ctx); err != nil {
		return err
	}
	defer l.Unlock(context.WithoutCancel(ctx)) //nolint:errcheck
	return fn()
}

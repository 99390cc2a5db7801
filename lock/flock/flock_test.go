package flock_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/shuttle/lock"
	"github.com/projecteru2/shuttle/lock/flock"
)

func TestTryLockExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "locks", "dns01.lan.lock")
	a, b := flock.New(path), flock.New(path)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "held lock is not reentrant")

	require.NoError(t, a.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock(ctx))
	require.NoError(t, b.Unlock(ctx))
	assert.FileExists(t, path)
}

func TestLockHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	holder := flock.New(path)
	ok, err := holder.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Unlock(context.Background()) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = flock.New(path).Lock(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTryAcquire(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "x.lock")

	release, err := lock.TryAcquire(ctx, flock.New(path), "dns01.lan")
	require.NoError(t, err)

	_, err = lock.TryAcquire(ctx, flock.New(path), "dns01.lan")
	assert.True(t, errors.Is(err, lock.ErrHeld))

	release()
	release2, err := lock.TryAcquire(ctx, flock.New(path), "dns01.lan")
	require.NoError(t, err)
	release2()
}

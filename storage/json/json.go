package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/projecteru2/shuttle/lock"
	"github.com/projecteru2/shuttle/lock/flock"
	"github.com/projecteru2/shuttle/storage"
)

// compile-time interface check.
var _ storage.Store[struct{}] = (*Store[struct{}])(nil)

// Store keeps T as an indented JSON file guarded by a sibling flock file.
// If *T implements storage.Initer, Init() is called after every load.
type Store[T any] struct {
	filePath string
	lockPath string
}

// New creates a Store for path. The lock file is path + ".lock".
func New[T any](path string) *Store[T] {
	return &Store[T]{filePath: path, lockPath: path + ".lock"}
}

// With loads the file under the lock and passes the data to fn. A missing
// file yields a zero T.
func (s *Store[T]) With(ctx context.Context, fn func(*T) error) error {
	return lock.WithLock(ctx, flock.New(s.lockPath), func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		return fn(data)
	})
}

// Update is With followed by an atomic write-back when fn returns nil.
func (s *Store[T]) Update(ctx context.Context, fn func(*T) error) error {
	return lock.WithLock(ctx, flock.New(s.lockPath), func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(data); err != nil {
			return err
		}
		raw, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", s.filePath, err)
		}
		return writeAtomic(s.filePath, append(raw, '\n'))
	})
}

func (s *Store[T]) load() (*T, error) {
	var data T
	raw, err := os.ReadFile(s.filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", s.filePath, err)
	default:
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.filePath, err)
		}
	}
	if initer, ok := any(&data).(storage.Initer); ok {
		initer.Init()
	}
	return &data, nil
}

// writeAtomic replaces path with data through a synced temp file and rename,
// so readers never see a partial file.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir) //nolint:gosec
	if err != nil {
		return err
	}
	defer d.Close() //nolint:errcheck
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTSUP) {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}

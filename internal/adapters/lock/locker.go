// Package lock implements advisory cross-process locks on top of flock(2).
package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Locker = (*FileLocker)(nil)

// FileLocker acquires exclusive locks on lock files.
//
// Every Acquire opens its own descriptor, so two goroutines of one process
// exclude each other just like two processes do. Lock files are never removed.
type FileLocker struct {
	timeout    time.Duration
	retryDelay time.Duration
}

// NewFileLocker creates a FileLocker. A non-positive timeout waits until ctx is done.
func NewFileLocker(timeout, retryDelay time.Duration) *FileLocker {
	if retryDelay <= 0 {
		retryDelay = domain.DefaultLockRetryDelay
	}
	return &FileLocker{timeout: timeout, retryDelay: retryDelay}
}

// Acquire implements ports.Locker.
func (l *FileLocker) Acquire(ctx context.Context, path string) (ports.Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create lock directory"), "path", path)
	}

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	fl := flock.New(path)
	locked, err := fl.TryLockContext(waitCtx, l.retryDelay)
	switch {
	case locked:
		return &fileLock{fl: fl}, nil
	case ctx.Err() != nil:
		// The caller gave up; that is not a timeout of ours.
		_ = fl.Close()
		return nil, ctx.Err()
	case err == nil || errors.Is(err, context.DeadlineExceeded):
		_ = fl.Close()
		return nil, zerr.With(zerr.Wrap(domain.ErrLockTimeout, "lock is held by another process"), "path", path)
	default:
		_ = fl.Close()
		return nil, zerr.With(zerr.Wrap(err, "failed to acquire lock"), "path", path)
	}
}

type fileLock struct {
	once sync.Once
	fl   *flock.Flock
	err  error
}

// Release implements ports.Lock.
func (l *fileLock) Release() error {
	l.once.Do(func() {
		if err := l.fl.Unlock(); err != nil {
			l.err = zerr.With(zerr.Wrap(err, "failed to release lock"), "path", l.fl.Path())
		}
	})
	return l.err
}

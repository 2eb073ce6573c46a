package ports

import "context"

// Locker hands out exclusive, cross-process locks keyed by file path.
//
//go:generate mockgen -source=locker.go -destination=mocks/mock_locker.go -package=mocks
type Locker interface {
	// Acquire blocks until the lock at path is held, the locker's timeout passes
	// (domain.ErrLockTimeout) or ctx is done.
	Acquire(ctx context.Context, path string) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	// Release gives the lock up. Releasing twice is a no-op.
	Release() error
}

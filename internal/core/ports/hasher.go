package ports

import "go.trai.ch/memo/internal/core/domain"

// Hasher defines the interface for hashing files.
//
//go:generate mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type Hasher interface {
	// CodeIdentity hashes the given files and directories into a code identity token.
	CodeIdentity(paths ...string) (string, error)

	// DigestTree hashes every file below dir, skipping reserved entry bookkeeping.
	// It returns per-file records sorted by path and an aggregate hash.
	DigestTree(dir string) ([]domain.FileRecord, string, error)
}

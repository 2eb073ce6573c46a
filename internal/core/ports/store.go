package ports

import (
	"context"

	"go.trai.ch/memo/internal/core/domain"
)

// ArtifactStore maps fingerprints to immutable entry directories below a single root.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ArtifactStore interface {
	// SetRoot configures the root. It is idempotent for the same path and fails with
	// domain.ErrAlreadyConfigured for a different one.
	SetRoot(path string) error

	// Root returns the configured root or domain.ErrRootNotSet.
	Root() (string, error)

	// OutputDir returns the absolute output location for a path relative to the root.
	OutputDir(output string) (string, error)

	// EntryDir returns root/output/.cache/fp without creating it.
	EntryDir(output string, fp domain.Fingerprint) (string, error)

	// LockPath returns the lock file of a fingerprint.
	LockPath(fp domain.Fingerprint) (string, error)

	// Exists reports whether a completely committed entry exists.
	Exists(output string, fp domain.Fingerprint) (bool, error)

	// Entries returns the top-level members of a complete entry, without bookkeeping files.
	Entries(output string, fp domain.Fingerprint) ([]string, error)

	// StagingDir creates a private directory inside the output's cache directory.
	StagingDir(output string) (string, error)

	// Publish copies the top-level entries of srcDir into a new entry and renames it into place.
	// The caller must hold the fingerprint lock.
	Publish(ctx context.Context, output string, fp domain.Fingerprint, srcDir string, meta domain.Manifest) (*domain.Manifest, error)

	// Manifest reads the manifest of a complete entry.
	Manifest(output string, fp domain.Fingerprint) (*domain.Manifest, error)

	// Verify re-hashes an entry and fails with domain.ErrEntryCorrupt if it differs from its manifest.
	Verify(output string, fp domain.Fingerprint) error

	// List returns every complete entry below the root.
	List(ctx context.Context) ([]domain.EntryInfo, error)

	// Sweep reports reclaimable directories and removes those decide accepts.
	// A nil decide only reports.
	Sweep(ctx context.Context, decide domain.SweepFunc) (*domain.SweepReport, error)
}

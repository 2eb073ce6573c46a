package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.Linker = (*SymlinkLinker)(nil)
	_ ports.Linker = (*CopyLinker)(nil)
	_ ports.Linker = (*FallbackLinker)(nil)
)

// SymlinkLinker mirrors entries with relative symlinks.
type SymlinkLinker struct{}

// Name implements ports.Linker.
func (SymlinkLinker) Name() string { return string(domain.LinkSymlink) }

// Mirror implements ports.Linker. The link target is relative to dst's directory so an
// output location keeps working when the whole cache root is moved.
func (SymlinkLinker) Mirror(src, dst, tmp string) error {
	target, err := filepath.Rel(filepath.Dir(dst), src)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to resolve link target"), "src", src)
	}

	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create link"), "path", dst)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, "failed to move link into place"), "path", dst)
	}
	return nil
}

const copyMirrorAttempts = 3

// CopyLinker mirrors entries with read-only copies.
type CopyLinker struct{}

// Name implements ports.Linker.
func (CopyLinker) Name() string { return string(domain.LinkCopy) }

// Mirror implements ports.Linker.
func (CopyLinker) Mirror(src, dst, tmp string) error {
	_ = RemoveTree(tmp)
	if err := CopyTree(src, tmp, true); err != nil {
		_ = RemoveTree(tmp)
		return err
	}

	// A directory cannot be renamed onto an existing one, so the old copy is moved
	// aside first and deleted once it is out of the output location. A concurrent
	// restore may recreate dst between the two renames.
	replaced := tmp + ".replaced"
	defer func() { _ = RemoveTree(replaced) }()

	var err error
	for range copyMirrorAttempts {
		if info, statErr := os.Lstat(dst); statErr == nil && info.IsDir() {
			_ = RemoveTree(replaced)
			if err = os.Rename(dst, replaced); err != nil && !errors.Is(err, iofs.ErrNotExist) {
				_ = RemoveTree(tmp)
				return zerr.With(zerr.Wrap(err, "failed to replace copy"), "path", dst)
			}
		}
		if err = os.Rename(tmp, dst); err == nil {
			return nil
		}
	}
	_ = RemoveTree(tmp)
	return zerr.With(zerr.Wrap(err, "failed to move copy into place"), "path", dst)
}

// FallbackLinker tries a primary strategy and switches to the fallback for good
// after the first failure, e.g. on platforms where creating symlinks needs privileges.
type FallbackLinker struct {
	primary  ports.Linker
	fallback ports.Linker
	degraded atomic.Bool
}

// NewFallbackLinker creates a FallbackLinker.
func NewFallbackLinker(primary, fallback ports.Linker) *FallbackLinker {
	return &FallbackLinker{primary: primary, fallback: fallback}
}

// Name implements ports.Linker.
func (l *FallbackLinker) Name() string {
	if l.degraded.Load() {
		return l.fallback.Name()
	}
	return l.primary.Name()
}

// Mirror implements ports.Linker.
func (l *FallbackLinker) Mirror(src, dst, tmp string) error {
	if !l.degraded.Load() {
		err := l.primary.Mirror(src, dst, tmp)
		if err == nil {
			return nil
		}
		l.degraded.Store(true)
	}
	return l.fallback.Mirror(src, dst, tmp)
}

// NewLinker returns the strategy for mode.
func NewLinker(mode domain.LinkMode) (ports.Linker, error) {
	switch mode {
	case domain.LinkSymlink:
		return SymlinkLinker{}, nil
	case domain.LinkCopy:
		return CopyLinker{}, nil
	case domain.LinkAuto, "":
		return NewFallbackLinker(SymlinkLinker{}, CopyLinker{}), nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidLinkMode, "unknown mode"), "link", string(mode))
	}
}

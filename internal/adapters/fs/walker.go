// Package fs provides file system adapters for walking, hashing, copying and mirroring files.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/memo/internal/core/domain"
)

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields every regular file and symlink below root, in lexical order.
// Paths include root. VCS metadata, cache directories and names matching ignores are skipped.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if path != root {
				if skip, skipAction := w.shouldSkip(d, ignores); skip {
					return skipAction
				}
			}

			if d.IsDir() {
				return nil
			}

			if !yield(path) {
				return filepath.SkipAll
			}

			return nil
		})
	}
}

// shouldSkip reports whether d is excluded. For directories the returned action is filepath.SkipDir.
func (w *Walker) shouldSkip(d fs.DirEntry, ignores []string) (bool, error) {
	name := d.Name()

	if d.IsDir() && (name == ".git" || name == ".jj" || name == domain.CacheDirName) {
		return true, filepath.SkipDir
	}

	for _, ignore := range ignores {
		matched, _ := filepath.Match(ignore, name)
		if matched {
			if d.IsDir() {
				return true, filepath.SkipDir
			}
			return true, nil
		}
	}

	return false, nil
}

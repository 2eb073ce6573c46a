package fs

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// CodeIdentityPrefix marks code identities derived from file contents.
const CodeIdentityPrefix = "xxh64:"

// Hasher provides hashing functionality for code and entries.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}

	return hasher.Sum64(), nil
}

// CodeIdentity hashes the contents of the given files and directories.
// Paths inside a directory are hashed relative to it so the identity survives moving the tree.
func (h *Hasher) CodeIdentity(paths ...string) (string, error) {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	hasher := xxhash.New()
	for _, root := range sorted {
		if _, err := os.Stat(root); err != nil {
			return "", zerr.With(zerr.Wrap(err, "code path not found"), "path", root)
		}

		for path := range h.walker.WalkFiles(root, nil) {
			rel, err := filepath.Rel(root, path)
			if err != nil || rel == "." {
				rel = filepath.Base(path)
			}
			if err := h.hashFile(path, filepath.ToSlash(rel), hasher); err != nil {
				return "", err
			}
		}
		_, _ = hasher.Write([]byte{0}) // Section separator
	}

	return fmt.Sprintf("%s%016x", CodeIdentityPrefix, hasher.Sum64()), nil
}

// DigestTree hashes every file below dir. Top-level bookkeeping files are skipped.
func (h *Hasher) DigestTree(dir string) ([]domain.FileRecord, string, error) {
	var records []domain.FileRecord

	err := filepath.WalkDir(dir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if domain.IsReservedEntryName(rel) {
			return nil
		}

		record, err := h.digestFile(path, filepath.ToSlash(rel), d)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, "", zerr.With(zerr.Wrap(err, "failed to digest tree"), "dir", dir)
	}

	slices.SortFunc(records, func(a, b domain.FileRecord) int {
		return cmp.Compare(a.Path, b.Path)
	})

	aggregate := xxhash.New()
	for _, r := range records {
		_, _ = aggregate.WriteString(r.Path)
		_, _ = aggregate.Write([]byte{0})
		_, _ = aggregate.WriteString(r.Hash)
		_, _ = aggregate.Write([]byte{0})
	}

	return records, fmt.Sprintf("%016x", aggregate.Sum64()), nil
}

// DigestPath hashes a file, link or directory tree into a single digest. Two paths
// with the same relative layout and contents have the same digest.
func DigestPath(path string) (string, error) {
	_, sum, err := (&Hasher{}).DigestTree(path)
	return sum, err
}

func (h *Hasher) digestFile(path, rel string, d iofs.DirEntry) (domain.FileRecord, error) {
	if d.Type()&iofs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return domain.FileRecord{}, err
		}
		return domain.FileRecord{
			Path: rel,
			Size: int64(len(target)),
			Hash: fmt.Sprintf("%016x", xxhash.Sum64String(target)),
		}, nil
	}

	info, err := d.Info()
	if err != nil {
		return domain.FileRecord{}, err
	}
	sum, err := h.ComputeFileHash(path)
	if err != nil {
		return domain.FileRecord{}, err
	}
	return domain.FileRecord{Path: rel, Size: info.Size(), Hash: fmt.Sprintf("%016x", sum)}, nil
}

func (h *Hasher) hashFile(path, name string, mainHasher io.Writer) error {
	_, _ = mainHasher.Write([]byte(name))
	_, _ = mainHasher.Write([]byte{0})

	info, err := os.Lstat(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stat path"), "path", path)
	}

	var sum uint64
	if info.Mode()&iofs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read link"), "path", path)
		}
		sum = xxhash.Sum64String(target)
	} else {
		sum, err = h.ComputeFileHash(path)
		if err != nil {
			return err
		}
	}

	if err := binary.Write(mainHasher, binary.LittleEndian, sum); err != nil {
		return zerr.Wrap(err, "failed to write hash to digest")
	}
	return nil
}

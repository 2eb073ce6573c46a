package session

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	fsadapter "go.trai.ch/memo/internal/adapters/fs" //nolint:depguard // Output locations hold read-only copies
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/zerr"
)

// listOutput returns the top-level names of an output location, without its cache
// directory. A missing location is empty.
func listOutput(outputDir string) ([]string, error) {
	children, err := os.ReadDir(outputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read output location"), "path", outputDir)
	}

	names := make([]string, 0, len(children))
	for _, child := range children {
		if child.Name() != domain.CacheDirName {
			names = append(names, child.Name())
		}
	}
	return names, nil
}

// clearOutput removes the members of the output location that the cache placed there.
// Every member is checked before anything is removed.
func (s *Session) clearOutput() error {
	names, err := listOutput(s.outputDir)
	if err != nil || len(names) == 0 {
		return err
	}

	record, err := readRecord(s.outputDir)
	if err != nil {
		return err
	}

	cacheDir := domain.CachePath(s.outputDir)
	for _, name := range names {
		path := filepath.Join(s.outputDir, name)
		owned, err := s.isOwned(path, cacheDir, record)
		if err != nil {
			return err
		}
		if !owned {
			return zerr.With(zerr.With(
				zerr.Wrap(domain.ErrUnexpectedContent, "refusing to delete files the cache did not create"),
				"output", s.output), "path", path)
		}
	}

	return removeAll(s.outputDir, names)
}

// discardOutput removes everything the caller computed into the output location.
func (s *Session) discardOutput() error {
	names, err := listOutput(s.outputDir)
	if err != nil {
		return err
	}
	return removeAll(s.outputDir, names)
}

// removeAll moves the named members out of the output location before deleting
// them, so a concurrent ownership check never digests a half-deleted tree.
func removeAll(dir string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	cacheDir := domain.CachePath(dir)
	if err := os.MkdirAll(cacheDir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", cacheDir)
	}
	discard, err := os.MkdirTemp(cacheDir, domain.MirrorTempPrefix+"*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create discard directory"), "path", cacheDir)
	}
	defer func() { _ = fsadapter.RemoveTree(discard) }()

	for i, name := range names {
		path := filepath.Join(dir, name)
		err := os.Rename(path, filepath.Join(discard, strconv.Itoa(i)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, "failed to clear output location"), "path", path)
		}
	}
	return nil
}

// isOwned reports whether path is a link into the cache directory, or a member of
// the restore record that still matches what the cache put there.
func (s *Session) isOwned(path, cacheDir string, record *domain.RestoreRecord) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Removed concurrently.
			return true, nil
		}
		return false, zerr.With(zerr.Wrap(err, "failed to stat output"), "path", path)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return false, zerr.With(zerr.Wrap(err, "failed to read link"), "path", path)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		if strings.HasPrefix(filepath.Clean(target), cacheDir+string(filepath.Separator)) {
			return true, nil
		}
	}

	member, ok := record.Member(filepath.Base(path))
	if !ok {
		return false, nil
	}

	want := member.Digest
	if !member.Computed {
		if member.Fingerprint == "" {
			return false, nil
		}
		want, err = s.entryDigest(member)
		if err != nil || want == "" {
			return false, err
		}
	}

	got, err := fsadapter.DigestPath(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return got == want, nil
}

// entryDigest hashes the entry member a mirror was restored from. It returns an
// empty digest when that entry no longer exists.
func (s *Session) entryDigest(member domain.OwnedMember) (string, error) {
	exists, err := s.m.store.Exists(s.output, member.Fingerprint)
	if err != nil || !exists {
		return "", err
	}
	entryDir, err := s.m.store.EntryDir(s.output, member.Fingerprint)
	if err != nil {
		return "", err
	}
	digest, err := fsadapter.DigestPath(filepath.Join(entryDir, member.Name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return digest, nil
}

// restore mirrors every member of the entry into the output location. The restore
// record is written first so an interrupted restore still owns what it created.
func (s *Session) restore(ctx context.Context) error {
	entries, err := s.m.store.Entries(s.output, s.fp)
	if err != nil {
		return errors.Join(domain.ErrRestoreFailed, err)
	}
	entryDir, err := s.m.store.EntryDir(s.output, s.fp)
	if err != nil {
		return err
	}

	members := make([]domain.OwnedMember, 0, len(entries))
	for _, name := range entries {
		members = append(members, domain.OwnedMember{Name: name, Fingerprint: s.fp})
	}
	if err := s.writeRecord(s.fp, members); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp(domain.CachePath(s.outputDir), domain.MirrorTempPrefix+"*")
	if err != nil {
		return errors.Join(domain.ErrRestoreFailed, zerr.Wrap(err, "failed to create mirror directory"))
	}
	defer func() { _ = fsadapter.RemoveTree(tmpDir) }()

	for _, name := range entries {
		if err := ctx.Err(); err != nil {
			return errors.Join(domain.ErrRestoreFailed, err)
		}
		src := filepath.Join(entryDir, name)
		dst := filepath.Join(s.outputDir, name)
		if err := s.m.linker.Mirror(src, dst, filepath.Join(tmpDir, name)); err != nil {
			return errors.Join(domain.ErrRestoreFailed, zerr.With(err, "entry", name))
		}
	}
	return nil
}

//nolint:nilnil // A missing record is not an error
func readRecord(outputDir string) (*domain.RestoreRecord, error) {
	path := domain.RestoreRecordPath(outputDir)
	data, err := os.ReadFile(path) //nolint:gosec // Path is below the cache root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read restore record"), "path", path)
	}

	var record domain.RestoreRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse restore record"), "path", path)
	}
	return &record, nil
}

// writeRecord replaces the restore record. Members of the previous record that
// still exist in the output location are kept unless members names them again.
func (s *Session) writeRecord(fp domain.Fingerprint, members []domain.OwnedMember) error {
	previous, err := readRecord(s.outputDir)
	if err != nil {
		return err
	}

	merged := slices.Clone(members)
	if previous != nil {
		for _, old := range previous.Members {
			if slices.ContainsFunc(members, func(m domain.OwnedMember) bool { return m.Name == old.Name }) {
				continue
			}
			if _, err := os.Lstat(filepath.Join(s.outputDir, old.Name)); err == nil {
				merged = append(merged, old)
			}
		}
	}
	slices.SortFunc(merged, func(a, b domain.OwnedMember) int { return strings.Compare(a.Name, b.Name) })

	linker := s.m.linker.Name()
	if fp == "" {
		linker = ""
	}
	record := domain.RestoreRecord{
		Fingerprint: fp,
		Members:     merged,
		Linker:      linker,
		RestoredAt:  s.m.now().UTC(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal restore record")
	}

	cacheDir := domain.CachePath(s.outputDir)
	if err := os.MkdirAll(cacheDir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", cacheDir)
	}
	return writeFileAtomic(domain.RestoreRecordPath(s.outputDir), data)
}

// computedMembers records the digest of everything computed into the output location.
func computedMembers(outputDir string) ([]domain.OwnedMember, error) {
	names, err := listOutput(outputDir)
	if err != nil {
		return nil, err
	}

	members := make([]domain.OwnedMember, 0, len(names))
	for _, name := range names {
		digest, err := fsadapter.DigestPath(filepath.Join(outputDir, name))
		if err != nil {
			return nil, err
		}
		members = append(members, domain.OwnedMember{Name: name, Computed: true, Digest: digest})
	}
	return members, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create temporary file"), "path", path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, "failed to write file"), "path", path)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close file"), "path", path)
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to chmod file"), "path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to move file into place"), "path", path)
	}
	return nil
}

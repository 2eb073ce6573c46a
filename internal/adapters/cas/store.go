// Package cas implements the fingerprint-addressed entry store.
package cas

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	fsadapter "go.trai.ch/memo/internal/adapters/fs" //nolint:depguard // Entries are copied with the fs helpers
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.ArtifactStore = (*Store)(nil)

// Store implements ports.ArtifactStore with one directory per entry:
//
//	<root>/<output>/.cache/<fingerprint>/
//
// An entry is visible only once its completion marker exists, and it only ever
// appears through a rename of a fully written sibling directory.
type Store struct {
	hasher ports.Hasher
	now    func() time.Time

	mu   sync.RWMutex
	root string
}

// NewStore creates a Store without a root.
func NewStore(hasher ports.Hasher) *Store {
	return &Store{hasher: hasher, now: time.Now}
}

// SetRoot implements ports.ArtifactStore.
func (s *Store) SetRoot(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to resolve cache root"), "path", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root != "" && s.root != abs {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrAlreadyConfigured, "cannot move the cache root"),
			"root", s.root), "requested", abs)
	}

	if err := os.MkdirAll(abs, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create cache root"), "path", abs)
	}
	s.root = abs
	return nil
}

// Root implements ports.ArtifactStore.
func (s *Store) Root() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.root == "" {
		return "", domain.ErrRootNotSet
	}
	return s.root, nil
}

// OutputDir implements ports.ArtifactStore. Absolute paths are accepted when they lie below the root.
func (s *Store) OutputDir(output string) (string, error) {
	root, err := s.Root()
	if err != nil {
		return "", err
	}

	rel := filepath.Clean(output)
	if filepath.IsAbs(rel) {
		if rel, err = filepath.Rel(root, rel); err != nil {
			return "", zerr.With(zerr.Wrap(domain.ErrInvalidOutputPath, err.Error()), "output", output)
		}
	}

	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidOutputPath, "output must lie below the cache root"),
			"output", output)
	}
	for part := range strings.SplitSeq(filepath.ToSlash(rel), "/") {
		if part == domain.CacheDirName || part == domain.LocksDirName {
			return "", zerr.With(zerr.Wrap(domain.ErrInvalidOutputPath, "output uses a reserved name"),
				"output", output)
		}
	}

	return filepath.Join(root, rel), nil
}

// EntryDir implements ports.ArtifactStore.
func (s *Store) EntryDir(output string, fp domain.Fingerprint) (string, error) {
	if !fp.Valid() {
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidFingerprint, "malformed"), "fingerprint", fp.String())
	}
	dir, err := s.OutputDir(output)
	if err != nil {
		return "", err
	}
	return filepath.Join(domain.CachePath(dir), fp.String()), nil
}

// LockPath implements ports.ArtifactStore.
func (s *Store) LockPath(fp domain.Fingerprint) (string, error) {
	if !fp.Valid() {
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidFingerprint, "malformed"), "fingerprint", fp.String())
	}
	root, err := s.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, domain.LocksDirName, fp.String()), nil
}

// Exists implements ports.ArtifactStore.
func (s *Store) Exists(output string, fp domain.Fingerprint) (bool, error) {
	dir, err := s.EntryDir(output, fp)
	if err != nil {
		return false, err
	}
	return isComplete(dir)
}

// Entries implements ports.ArtifactStore.
func (s *Store) Entries(output string, fp domain.Fingerprint) ([]string, error) {
	dir, err := s.EntryDir(output, fp)
	if err != nil {
		return nil, err
	}
	ok, err := isComplete(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrEntryNotFound, "no complete entry"), "fingerprint", fp.String())
	}

	return topLevel(dir)
}

// StagingDir implements ports.ArtifactStore.
func (s *Store) StagingDir(output string) (string, error) {
	dir, err := s.OutputDir(output)
	if err != nil {
		return "", err
	}
	cacheDir := domain.CachePath(dir)
	if err := os.MkdirAll(cacheDir, domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", cacheDir)
	}
	staging, err := os.MkdirTemp(cacheDir, domain.StagingDirPrefix+"*")
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create staging directory"), "path", cacheDir)
	}
	return staging, nil
}

// Publish implements ports.ArtifactStore.
//
// The entry is assembled in a temporary sibling directory: content first, then the
// manifest, then the completion marker, and finally a single rename makes it visible.
// On failure the temporary directory is removed and domain.ErrCommitFailed is returned.
func (s *Store) Publish(
	ctx context.Context,
	output string,
	fp domain.Fingerprint,
	srcDir string,
	meta domain.Manifest,
) (*domain.Manifest, error) {
	entryDir, err := s.EntryDir(output, fp)
	if err != nil {
		return nil, err
	}
	cacheDir := filepath.Dir(entryDir)
	if err := os.MkdirAll(cacheDir, domain.DirPerm); err != nil {
		return nil, commitFailed(zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", cacheDir))
	}

	tmp, err := os.MkdirTemp(cacheDir, domain.TempDirPrefix+fp.String()+"-*")
	if err != nil {
		return nil, commitFailed(zerr.With(zerr.Wrap(err, "failed to create temporary entry"), "path", cacheDir))
	}

	manifest, err := s.assemble(ctx, tmp, srcDir, fp, meta)
	if err == nil {
		err = s.moveIntoPlace(ctx, tmp, entryDir)
	}
	if err != nil {
		_ = fsadapter.RemoveTree(tmp)
		return nil, commitFailed(zerr.With(err, "fingerprint", fp.String()))
	}
	return manifest, nil
}

func (s *Store) assemble(
	ctx context.Context,
	tmp, srcDir string,
	fp domain.Fingerprint,
	meta domain.Manifest,
) (*domain.Manifest, error) {
	names, err := topLevel(srcDir)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fsadapter.CopyTree(filepath.Join(srcDir, name), filepath.Join(tmp, name), true)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records, aggregate, err := s.hasher.DigestTree(tmp)
	if err != nil {
		return nil, err
	}

	manifest := meta
	manifest.Fingerprint = fp
	manifest.Entries = names
	manifest.Files = records
	manifest.OutputHash = aggregate
	manifest.Size = 0
	for _, r := range records {
		manifest.Size += r.Size
	}
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = s.now().UTC()
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to marshal manifest")
	}
	if err := os.WriteFile(filepath.Join(tmp, domain.ManifestFileName), data, domain.FilePerm&^0o222); err != nil {
		return nil, zerr.Wrap(err, "failed to write manifest")
	}

	// The marker is written last; its presence proves everything above is on disk.
	if err := os.WriteFile(filepath.Join(tmp, domain.MarkerFileName), nil, domain.FilePerm&^0o222); err != nil {
		return nil, zerr.Wrap(err, "failed to write completion marker")
	}
	return &manifest, nil
}

// moveIntoPlace renames tmp onto entryDir. The caller holds the fingerprint lock, so
// the only thing that can already sit at entryDir is the leftover of a crashed commit.
func (s *Store) moveIntoPlace(ctx context.Context, tmp, entryDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Lstat(entryDir); err == nil {
		complete, err := isComplete(entryDir)
		if err != nil {
			return err
		}
		if complete {
			return zerr.With(zerr.New("entry already exists"), "path", entryDir)
		}
		if err := fsadapter.RemoveTree(entryDir); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to remove incomplete entry"), "path", entryDir)
		}
	}

	if err := os.Rename(tmp, entryDir); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to publish entry"), "path", entryDir)
	}
	return nil
}

// Manifest implements ports.ArtifactStore.
func (s *Store) Manifest(output string, fp domain.Fingerprint) (*domain.Manifest, error) {
	dir, err := s.EntryDir(output, fp)
	if err != nil {
		return nil, err
	}
	ok, err := isComplete(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrEntryNotFound, "no complete entry"), "fingerprint", fp.String())
	}
	return readManifest(dir)
}

// Verify implements ports.ArtifactStore.
func (s *Store) Verify(output string, fp domain.Fingerprint) error {
	manifest, err := s.Manifest(output, fp)
	if err != nil {
		return err
	}
	dir, err := s.EntryDir(output, fp)
	if err != nil {
		return err
	}

	records, aggregate, err := s.hasher.DigestTree(dir)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrEntryCorrupt, err.Error()), "fingerprint", fp.String())
	}
	if aggregate == manifest.OutputHash {
		return nil
	}

	for _, want := range manifest.Files {
		i := slices.IndexFunc(records, func(r domain.FileRecord) bool { return r.Path == want.Path })
		if i < 0 {
			return zerr.With(zerr.Wrap(domain.ErrEntryCorrupt, "file is missing"), "path", want.Path)
		}
		if records[i] != want {
			return zerr.With(zerr.Wrap(domain.ErrEntryCorrupt, "file content changed"), "path", want.Path)
		}
	}
	return zerr.With(zerr.Wrap(domain.ErrEntryCorrupt, "entry has unexpected files"), "fingerprint", fp.String())
}

// List implements ports.ArtifactStore.
func (s *Store) List(ctx context.Context) ([]domain.EntryInfo, error) {
	var infos []domain.EntryInfo
	err := s.walkCacheDirs(ctx, func(output, cacheDir string) error {
		children, err := os.ReadDir(cacheDir)
		if err != nil {
			return err
		}
		for _, child := range children {
			fp := domain.Fingerprint(child.Name())
			if !child.IsDir() || !fp.Valid() {
				continue
			}
			dir := filepath.Join(cacheDir, child.Name())
			if ok, err := isComplete(dir); err != nil || !ok {
				continue
			}

			info := domain.EntryInfo{Output: output, Fingerprint: fp}
			if manifest, err := readManifest(dir); err == nil {
				info.TaskName = manifest.TaskName
				info.Size = manifest.Size
				info.CreatedAt = manifest.CreatedAt
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(infos, func(a, b domain.EntryInfo) int {
		if c := strings.Compare(a.Output, b.Output); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return infos, nil
}

// Sweep implements ports.ArtifactStore. The store guesses no policy: every removal is
// decided by the caller.
func (s *Store) Sweep(ctx context.Context, decide domain.SweepFunc) (*domain.SweepReport, error) {
	report := &domain.SweepReport{}
	err := s.walkCacheDirs(ctx, func(output, cacheDir string) error {
		children, err := os.ReadDir(cacheDir)
		if err != nil {
			return err
		}
		for _, child := range children {
			candidate, ok, err := classify(output, cacheDir, child)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			report.Candidates = append(report.Candidates, candidate)

			if decide == nil || !decide(candidate) {
				continue
			}
			if err := fsadapter.RemoveTree(candidate.Path); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to remove sweep candidate"), "path", candidate.Path)
			}
			report.Removed = append(report.Removed, candidate.Path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func classify(output, cacheDir string, child fs.DirEntry) (domain.SweepCandidate, bool, error) {
	name := child.Name()
	candidate := domain.SweepCandidate{Output: output, Path: filepath.Join(cacheDir, name)}

	switch {
	case strings.HasPrefix(name, domain.TempDirPrefix), strings.HasPrefix(name, domain.MirrorTempPrefix):
		candidate.Kind = domain.SweepOrphanedTemp
	case strings.HasPrefix(name, domain.StagingDirPrefix):
		candidate.Kind = domain.SweepOrphanedStaging
	case child.IsDir() && domain.Fingerprint(name).Valid():
		complete, err := isComplete(candidate.Path)
		if err != nil || complete {
			return candidate, false, err
		}
		candidate.Kind = domain.SweepIncompleteEntry
	default:
		return candidate, false, nil
	}

	info, err := child.Info()
	if err != nil {
		return candidate, false, nil //nolint:nilerr // Vanished while sweeping
	}
	candidate.ModTime = info.ModTime()
	return candidate, true, nil
}

// walkCacheDirs calls fn for the cache directory of every output location below the root.
func (s *Store) walkCacheDirs(ctx context.Context, fn func(output, cacheDir string) error) error {
	root, err := s.Root()
	if err != nil {
		return err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && errors.Is(err, fs.ErrNotExist) {
				// Renamed or removed by a concurrent commit.
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path == filepath.Join(root, domain.LocksDirName) {
			return filepath.SkipDir
		}
		if d.Name() != domain.CacheDirName || path == root {
			return nil
		}

		output, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		if err := fn(filepath.ToSlash(output), path); err != nil {
			return err
		}
		return filepath.SkipDir
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to walk cache root"), "root", root)
	}
	return nil
}

func isComplete(entryDir string) (bool, error) {
	_, err := os.Stat(filepath.Join(entryDir, domain.MarkerFileName))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, zerr.With(zerr.Wrap(err, "failed to check completion marker"), "path", entryDir)
	}
}

// topLevel lists the names of dir that belong to a computed result.
func topLevel(dir string) ([]string, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read directory"), "path", dir)
	}
	names := make([]string, 0, len(children))
	for _, child := range children {
		name := child.Name()
		if name == domain.CacheDirName || domain.IsReservedEntryName(name) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func readManifest(entryDir string) (*domain.Manifest, error) {
	path := filepath.Join(entryDir, domain.ManifestFileName)
	//nolint:gosec // Path is constructed below the cache root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrManifestReadFailed, err.Error()), "path", path)
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrManifestUnmarshalFailed, err.Error()), "path", path)
	}
	return &manifest, nil
}

func commitFailed(err error) error {
	return errors.Join(domain.ErrCommitFailed, err)
}

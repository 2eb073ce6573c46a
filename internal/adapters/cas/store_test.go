package cas_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/memo/internal/adapters/cas"
	"go.trai.ch/memo/internal/adapters/fs"
	"go.trai.ch/memo/internal/core/domain"
)

func newStore(t *testing.T) (*cas.Store, string) {
	t.Helper()
	root := t.TempDir()
	store := cas.NewStore(fs.NewHasher(fs.NewWalker()))
	require.NoError(t, store.SetRoot(root))
	return store, root
}

func fingerprint(t *testing.T, inputs map[string]any) domain.Fingerprint {
	t.Helper()
	fp, err := domain.ComputeFingerprint("v1", inputs)
	require.NoError(t, err)
	return fp
}

// writeResult fills dir with a small computed result.
func writeResult(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "plots"), domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.json"), []byte("[1,1,1,1]"), domain.PrivateFilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plots", "fit.txt"), []byte("chi2=1.0"), domain.PrivateFilePerm))
}

func TestStore_SetRoot(t *testing.T) {
	t.Parallel()

	store := cas.NewStore(fs.NewHasher(fs.NewWalker()))

	_, err := store.Root()
	require.ErrorIs(t, err, domain.ErrRootNotSet)

	root := filepath.Join(t.TempDir(), "nested", "root")
	require.NoError(t, store.SetRoot(root))
	assert.DirExists(t, root)

	require.NoError(t, store.SetRoot(root+string(filepath.Separator)), "same path must be idempotent")

	err = store.SetRoot(t.TempDir())
	require.ErrorIs(t, err, domain.ErrAlreadyConfigured)

	got, err := store.Root()
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestStore_RequiresRoot(t *testing.T) {
	t.Parallel()

	store := cas.NewStore(fs.NewHasher(fs.NewWalker()))
	fp := fingerprint(t, nil)

	_, err := store.Exists("out", fp)
	require.ErrorIs(t, err, domain.ErrRootNotSet)

	_, err = store.LockPath(fp)
	require.ErrorIs(t, err, domain.ErrRootNotSet)
}

func TestStore_Paths(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	fp := fingerprint(t, map[string]any{"n": 4})

	dir, err := store.EntryDir("worker_004", fp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "worker_004", ".cache", fp.String()), dir)
	assert.NoDirExists(t, dir, "EntryDir must not create the entry")

	lockPath, err := store.LockPath(fp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".locks", fp.String()), lockPath)

	abs, err := store.OutputDir(filepath.Join(root, "fits", "a"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "fits", "a"), abs)

	_, err = store.EntryDir("out", domain.Fingerprint("nope"))
	require.ErrorIs(t, err, domain.ErrInvalidFingerprint)
}

func TestStore_OutputDir_Invalid(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)

	for _, output := range []string{
		"",
		".",
		"..",
		"../escape",
		"a/../../escape",
		".cache",
		"a/.cache/b",
		".locks",
		filepath.Join(filepath.Dir(root), "elsewhere"),
	} {
		t.Run(output, func(t *testing.T) {
			t.Parallel()
			_, err := store.OutputDir(output)
			require.ErrorIs(t, err, domain.ErrInvalidOutputPath)
		})
	}
}

func TestStore_Publish(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	fp := fingerprint(t, map[string]any{"n": 4, "val": 1})
	output := "worker_004"

	src := filepath.Join(root, output)
	writeResult(t, src)

	exists, err := store.Exists(output, fp)
	require.NoError(t, err)
	assert.False(t, exists)

	manifest, err := store.Publish(context.Background(), output, fp, src, domain.Manifest{
		Output:       output,
		TaskName:     "fit",
		CodeIdentity: "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, fp, manifest.Fingerprint)
	assert.Equal(t, []string{"plots", "result.json"}, manifest.Entries)
	assert.Len(t, manifest.Files, 2)
	assert.Equal(t, int64(len("[1,1,1,1]")+len("chi2=1.0")), manifest.Size)
	assert.False(t, manifest.CreatedAt.IsZero())

	exists, err = store.Exists(output, fp)
	require.NoError(t, err)
	assert.True(t, exists)

	entries, err := store.Entries(output, fp)
	require.NoError(t, err)
	assert.Equal(t, []string{"plots", "result.json"}, entries)

	dir, err := store.EntryDir(output, fp)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "result.json"))
	require.NoError(t, err)
	assert.Equal(t, "[1,1,1,1]", string(got))

	info, err := os.Stat(filepath.Join(dir, "plots", "fit.txt"))
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o222, "entry files must be read-only")

	read, err := store.Manifest(output, fp)
	require.NoError(t, err)
	assert.Equal(t, "fit", read.TaskName)
	assert.Equal(t, manifest.OutputHash, read.OutputHash)

	require.NoError(t, store.Verify(output, fp))

	// No temporary directories are left next to the entry.
	children, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, fp.String(), children[0].Name())
}

func TestStore_IncompleteEntryIsMissing(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	fp := fingerprint(t, map[string]any{"crash": true})
	output := "out"

	// A crash between copying and renaming leaves a directory without marker.
	dir, err := store.EntryDir(output, fp)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "half.bin"), []byte("partial"), domain.PrivateFilePerm))

	exists, err := store.Exists(output, fp)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Entries(output, fp)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)

	// A later commit replaces the leftover.
	src := filepath.Join(root, output)
	writeResult(t, src)
	_, err = store.Publish(context.Background(), output, fp, src, domain.Manifest{})
	require.NoError(t, err)

	entries, err := store.Entries(output, fp)
	require.NoError(t, err)
	assert.Equal(t, []string{"plots", "result.json"}, entries)
}

func TestStore_Publish_Failure(t *testing.T) {
	t.Parallel()

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()
		store, root := newStore(t)
		fp := fingerprint(t, map[string]any{"n": 1})

		_, err := store.Publish(context.Background(), "out", fp, filepath.Join(root, "missing"), domain.Manifest{})
		require.ErrorIs(t, err, domain.ErrCommitFailed)

		exists, err := store.Exists("out", fp)
		require.NoError(t, err)
		assert.False(t, exists)

		children, err := os.ReadDir(filepath.Join(root, "out", ".cache"))
		require.NoError(t, err)
		assert.Empty(t, children, "temporary directory must be removed")
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		store, root := newStore(t)
		fp := fingerprint(t, map[string]any{"n": 2})
		src := filepath.Join(root, "out")
		writeResult(t, src)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Publish(ctx, "out", fp, src, domain.Manifest{})
		require.ErrorIs(t, err, domain.ErrCommitFailed)
		require.ErrorIs(t, err, context.Canceled)

		exists, err := store.Exists("out", fp)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("complete entry is never replaced", func(t *testing.T) {
		t.Parallel()
		store, root := newStore(t)
		fp := fingerprint(t, map[string]any{"n": 3})
		src := filepath.Join(root, "out")
		writeResult(t, src)

		_, err := store.Publish(context.Background(), "out", fp, src, domain.Manifest{})
		require.NoError(t, err)

		_, err = store.Publish(context.Background(), "out", fp, src, domain.Manifest{})
		require.ErrorIs(t, err, domain.ErrCommitFailed)
		require.NoError(t, store.Verify("out", fp))
	})
}

func TestStore_Verify_Corrupt(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	fp := fingerprint(t, map[string]any{"n": 4})
	src := filepath.Join(root, "out")
	writeResult(t, src)

	_, err := store.Publish(context.Background(), "out", fp, src, domain.Manifest{})
	require.NoError(t, err)

	dir, err := store.EntryDir("out", fp)
	require.NoError(t, err)
	path := filepath.Join(dir, "result.json")
	require.NoError(t, os.Chmod(path, domain.PrivateFilePerm))
	require.NoError(t, os.WriteFile(path, []byte("[2,2,2,2]"), domain.PrivateFilePerm))

	err = store.Verify("out", fp)
	require.ErrorIs(t, err, domain.ErrEntryCorrupt)
	assert.ErrorContains(t, err, "content changed")

	_, err = store.Manifest("out", fingerprint(t, map[string]any{"n": 5}))
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	for i, output := range []string{"b/fit", "a"} {
		fp := fingerprint(t, map[string]any{"i": i})
		src := filepath.Join(root, output)
		writeResult(t, src)
		_, err := store.Publish(context.Background(), output, fp, src, domain.Manifest{TaskName: "task-" + output})
		require.NoError(t, err)
	}

	// Incomplete entries are not listed.
	incomplete, err := store.EntryDir("a", fingerprint(t, map[string]any{"i": 9}))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(incomplete, domain.DirPerm))

	infos, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Output)
	assert.Equal(t, "task-a", infos[0].TaskName)
	assert.Equal(t, "b/fit", infos[1].Output)
	assert.Positive(t, infos[1].Size)
}

func TestStore_Sweep(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	fp := fingerprint(t, map[string]any{"n": 4})
	src := filepath.Join(root, "out")
	writeResult(t, src)
	_, err := store.Publish(context.Background(), "out", fp, src, domain.Manifest{})
	require.NoError(t, err)

	cacheDir := filepath.Join(root, "out", ".cache")
	tmp := filepath.Join(cacheDir, ".tmp-"+fp.String()+"-123")
	staging := filepath.Join(cacheDir, ".staging-456")
	incomplete := filepath.Join(cacheDir, fingerprint(t, map[string]any{"n": 5}).String())
	for _, dir := range []string{tmp, staging, incomplete} {
		require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	}

	report, err := store.Sweep(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Candidates, 3)
	assert.Empty(t, report.Removed)

	kinds := map[domain.SweepKind]string{}
	for _, c := range report.Candidates {
		assert.Equal(t, "out", c.Output)
		kinds[c.Kind] = c.Path
	}
	assert.Equal(t, map[domain.SweepKind]string{
		domain.SweepOrphanedTemp:    tmp,
		domain.SweepOrphanedStaging: staging,
		domain.SweepIncompleteEntry: incomplete,
	}, kinds)

	report, err = store.Sweep(context.Background(), func(c domain.SweepCandidate) bool {
		return c.Kind == domain.SweepOrphanedTemp
	})
	require.NoError(t, err)
	assert.Equal(t, []string{tmp}, report.Removed)
	assert.NoDirExists(t, tmp)
	assert.DirExists(t, staging)

	exists, err := store.Exists("out", fp)
	require.NoError(t, err)
	assert.True(t, exists, "complete entries are never candidates")
}

package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/memo/internal/adapters/cas"
	"go.trai.ch/memo/internal/adapters/fs"
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports/mocks"
	"go.trai.ch/memo/internal/engine/session"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func TestManager_NewSession(t *testing.T) {
	t.Run("requires a root", func(t *testing.T) {
		store := cas.NewStore(fs.NewHasher(fs.NewWalker()))
		mgr := session.NewManager(store, nil, nil, nil, nil)

		_, err := mgr.NewSession(workerOutput, "v1", workerInputs, "")
		require.ErrorIs(t, err, domain.ErrRootNotSet)
	})

	h := newHarness(t, harnessOpts{})

	tests := []struct {
		name    string
		output  string
		inputs  map[string]any
		wantErr error
	}{
		{name: "reserved key", output: workerOutput, inputs: map[string]any{domain.CodeIdentityKey: 1}, wantErr: domain.ErrReservedKey},
		{name: "unhashable", output: workerOutput, inputs: map[string]any{"f": func() {}}, wantErr: domain.ErrUnhashableInput},
		{name: "escaping output", output: "../elsewhere", inputs: workerInputs, wantErr: domain.ErrInvalidOutputPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.mgr.NewSession(tt.output, "v1", tt.inputs, "")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	s := h.session(t, workerOutput, "v1", workerInputs, "worker")
	want, err := domain.ComputeFingerprint("v1", workerInputs)
	require.NoError(t, err)
	assert.Equal(t, want, s.Fingerprint())
	assert.Equal(t, workerOutput, s.Output())
	assert.Equal(t, h.outputDir(workerOutput), s.OutputDir())
	assert.Equal(t, "worker", s.TaskName())
	assert.Equal(t, session.StateFresh, s.State())
}

func TestSession_WorkerScenario(t *testing.T) {
	for _, mode := range []domain.LinkMode{domain.LinkSymlink, domain.LinkCopy} {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, harnessOpts{link: mode})
			ctx := context.Background()
			var calls atomic.Int32

			first := h.session(t, workerOutput, "v1", workerInputs, "worker")
			restored, err := first.TryRestore(ctx)
			require.NoError(t, err)
			require.False(t, restored)
			assert.Equal(t, session.StateComputing, first.State())

			require.NoError(t, fillWorker(&calls)(ctx, first.OutputDir()))
			require.NoError(t, first.Commit(ctx))
			assert.Equal(t, session.StateDone, first.State())

			ok, err := h.store.Exists(workerOutput, first.Fingerprint())
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, h.store.Verify(workerOutput, first.Fingerprint()))

			second := h.session(t, workerOutput, "v1", workerInputs, "worker")
			restored, err = second.TryRestore(ctx)
			require.NoError(t, err)
			assert.True(t, restored)
			assert.Equal(t, session.StateRestored, second.State())

			assert.Equal(t, "[1,1,1,1]", readOutput(t, second.OutputDir(), "result.json"))
			assert.Equal(t, "1,1", readOutput(t, second.OutputDir(), filepath.Join("parts", "0.txt")))
			assert.Equal(t, int32(1), calls.Load(), "the computation must run exactly once")
			assert.Equal(t, 1, entryCount(t, h.store))

			info, err := os.Lstat(filepath.Join(second.OutputDir(), "result.json"))
			require.NoError(t, err)
			if mode == domain.LinkSymlink {
				assert.NotZero(t, info.Mode()&os.ModeSymlink, "restored members are links")
			} else {
				assert.Zero(t, info.Mode().Perm()&0o222, "restored copies are read-only")
			}
		})
	}
}

func TestSession_CommitLeavesMirrors(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()
	var calls atomic.Int32

	s := h.session(t, workerOutput, "v1", workerInputs, "")
	_, err := s.Run(ctx, fillWorker(&calls))
	require.NoError(t, err)

	// After a commit the caller's files are links into the entry.
	target, err := os.Readlink(filepath.Join(s.OutputDir(), "result.json"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(domain.CacheDirName, s.Fingerprint().String(), "result.json"), target)

	t.Run("a different fingerprint clears the mirrors", func(t *testing.T) {
		other := h.session(t, workerOutput, "v2", workerInputs, "")
		restored, err := other.TryRestore(ctx)
		require.NoError(t, err)
		assert.False(t, restored)

		children, err := os.ReadDir(other.OutputDir())
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, domain.CacheDirName, children[0].Name())
	})
}

func TestSession_Sensitivity(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()
	var calls atomic.Int32

	base := h.session(t, workerOutput, "v1", workerInputs, "")
	_, err := base.Run(ctx, fillWorker(&calls))
	require.NoError(t, err)

	variants := []struct {
		name         string
		codeIdentity string
		inputs       map[string]any
	}{
		{name: "code identity", codeIdentity: "v2", inputs: workerInputs},
		{name: "n", codeIdentity: "v1", inputs: map[string]any{"n": 5, "val": 1}},
		{name: "val", codeIdentity: "v1", inputs: map[string]any{"n": 4, "val": 2}},
		{name: "extra input", codeIdentity: "v1", inputs: map[string]any{"n": 4, "val": 1, "seed": 7}},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			s := h.session(t, workerOutput, v.codeIdentity, v.inputs, "")
			assert.NotEqual(t, base.Fingerprint(), s.Fingerprint())

			restored, err := s.TryRestore(ctx)
			require.NoError(t, err)
			assert.False(t, restored)
		})
	}

	same := h.session(t, workerOutput, "v1", map[string]any{"val": 1, "n": 4}, "")
	restored, err := same.TryRestore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
}

func TestSession_SafetyGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("real file", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		var calls atomic.Int32
		first := h.session(t, workerOutput, "v1", workerInputs, "")
		_, err := first.Run(ctx, fillWorker(&calls))
		require.NoError(t, err)

		manual := filepath.Join(first.OutputDir(), "notes.txt")
		require.NoError(t, os.WriteFile(manual, []byte("keep me"), domain.FilePerm))

		s := h.session(t, workerOutput, "v2", workerInputs, "")
		restored, err := s.TryRestore(ctx)
		require.ErrorIs(t, err, domain.ErrUnexpectedContent)
		assert.False(t, restored)
		assert.Equal(t, session.StateFresh, s.State(), "a failed call can be retried")

		assert.Equal(t, "keep me", readOutput(t, first.OutputDir(), "notes.txt"))
		_, err = os.Lstat(filepath.Join(first.OutputDir(), "result.json"))
		require.NoError(t, err, "nothing is deleted when the guard trips")

		require.NoError(t, os.Remove(manual))
		_, err = s.TryRestore(ctx)
		require.NoError(t, err)
	})

	t.Run("link outside the cache", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		out := h.outputDir(workerOutput)
		require.NoError(t, os.MkdirAll(out, domain.DirPerm))
		require.NoError(t, os.Symlink(t.TempDir(), filepath.Join(out, "data")))

		s := h.session(t, workerOutput, "v1", workerInputs, "")
		_, err := s.TryRestore(ctx)
		require.ErrorIs(t, err, domain.ErrUnexpectedContent)
	})

	t.Run("real file before the first run", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		out := h.outputDir(workerOutput)
		require.NoError(t, os.MkdirAll(out, domain.DirPerm))
		require.NoError(t, os.WriteFile(filepath.Join(out, "result.json"), []byte("stale"), domain.FilePerm))

		var calls atomic.Int32
		s := h.session(t, workerOutput, "v1", workerInputs, "")
		_, err := s.Run(ctx, fillWorker(&calls))
		require.ErrorIs(t, err, domain.ErrUnexpectedContent)
		assert.Zero(t, calls.Load())
		assert.Equal(t, "stale", readOutput(t, out, "result.json"))
	})

	for _, mode := range []domain.LinkMode{domain.LinkSymlink, domain.LinkCopy} {
		t.Run("mirror replaced by a real file/"+string(mode), func(t *testing.T) {
			h := newHarness(t, harnessOpts{link: mode})
			var calls atomic.Int32
			first := h.session(t, workerOutput, "v1", workerInputs, "")
			_, err := first.Run(ctx, fillWorker(&calls))
			require.NoError(t, err)

			result := filepath.Join(first.OutputDir(), "result.json")
			require.NoError(t, os.Remove(result))
			require.NoError(t, os.WriteFile(result, []byte("hand-written"), domain.FilePerm))

			s := h.session(t, workerOutput, "v2", workerInputs, "")
			restored, err := s.TryRestore(ctx)
			require.ErrorIs(t, err, domain.ErrUnexpectedContent)
			assert.False(t, restored)
			assert.Equal(t, "hand-written", readOutput(t, first.OutputDir(), "result.json"))
		})
	}

	t.Run("unchanged copies are cleared", func(t *testing.T) {
		h := newHarness(t, harnessOpts{link: domain.LinkCopy})
		var calls atomic.Int32
		first := h.session(t, workerOutput, "v1", workerInputs, "")
		_, err := first.Run(ctx, fillWorker(&calls))
		require.NoError(t, err)

		info, err := os.Lstat(filepath.Join(first.OutputDir(), "result.json"))
		require.NoError(t, err)
		require.Zero(t, info.Mode()&os.ModeSymlink, "copy mode places real files")

		s := h.session(t, workerOutput, "v2", workerInputs, "")
		restored, err := s.TryRestore(ctx)
		require.NoError(t, err)
		assert.False(t, restored)
		_, err = os.Lstat(filepath.Join(first.OutputDir(), "result.json"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestSession_CrashSafety(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()

	s := h.session(t, workerOutput, "v1", workerInputs, "")
	entryDir, err := h.store.EntryDir(workerOutput, s.Fingerprint())
	require.NoError(t, err)

	// A commit that died after copying part of the content but before its marker and rename.
	cacheDir := filepath.Dir(entryDir)
	tmp := filepath.Join(cacheDir, domain.TempDirPrefix+s.Fingerprint().String()+"-1")
	require.NoError(t, os.MkdirAll(tmp, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "result.json"), []byte("[1,1"), domain.FilePerm))
	require.NoError(t, os.MkdirAll(entryDir, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(entryDir, "result.json"), []byte("[1,"), domain.FilePerm))

	ok, err := h.store.Exists(workerOutput, s.Fingerprint())
	require.NoError(t, err)
	assert.False(t, ok, "an entry without its marker is missing")

	var calls atomic.Int32
	restored, err := s.Run(ctx, fillWorker(&calls))
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, h.store.Verify(workerOutput, s.Fingerprint()))
	assert.Equal(t, "[1,1,1,1]", readOutput(t, s.OutputDir(), "result.json"))
}

func TestSession_InvalidState(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()

	s := h.session(t, workerOutput, "v1", workerInputs, "")
	require.ErrorIs(t, s.Commit(ctx), domain.ErrInvalidSessionState)

	_, err := s.TryRestore(ctx)
	require.NoError(t, err)
	_, err = s.TryRestore(ctx)
	require.ErrorIs(t, err, domain.ErrInvalidSessionState)

	var calls atomic.Int32
	require.NoError(t, fillWorker(&calls)(ctx, s.OutputDir()))
	require.NoError(t, s.Commit(ctx))
	require.ErrorIs(t, s.Commit(ctx), domain.ErrInvalidSessionState)

	hit := h.session(t, workerOutput, "v1", workerInputs, "")
	restored, err := hit.TryRestore(ctx)
	require.NoError(t, err)
	require.True(t, restored)
	require.ErrorIs(t, hit.Commit(ctx), domain.ErrInvalidSessionState)
}

func TestSession_LockTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockLocker(ctrl)
	held := mocks.NewMockLock(ctrl)

	h := newHarness(t, harnessOpts{locker: locker})
	ctx := context.Background()

	s := h.session(t, workerOutput, "v1", workerInputs, "")
	lockPath, err := h.store.LockPath(s.Fingerprint())
	require.NoError(t, err)

	gomock.InOrder(
		locker.EXPECT().Acquire(gomock.Any(), lockPath).
			Return(nil, zerr.Wrap(domain.ErrLockTimeout, "lock is held by another process")),
		locker.EXPECT().Acquire(gomock.Any(), lockPath).Return(held, nil),
		held.EXPECT().Release().Return(nil),
	)

	_, err = s.TryRestore(ctx)
	require.NoError(t, err)
	var calls atomic.Int32
	require.NoError(t, fillWorker(&calls)(ctx, s.OutputDir()))

	err = s.Commit(ctx)
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Equal(t, session.StateComputing, s.State())
	assert.Zero(t, entryCount(t, h.store))
	assert.Equal(t, "[1,1,1,1]", readOutput(t, s.OutputDir(), "result.json"), "the computed result is kept for a retry")

	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, 1, entryCount(t, h.store))
}

func TestSession_Run_ComputeFails(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()
	boom := errors.New("fit did not converge")

	s := h.session(t, workerOutput, "v1", workerInputs, "")
	var staging string
	_, err := s.Run(ctx, func(_ context.Context, dir string) error {
		staging = dir
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, entryCount(t, h.store))

	_, statErr := os.Stat(staging)
	assert.True(t, os.IsNotExist(statErr), "the staging directory is removed")
	assert.Equal(t, filepath.Join(s.OutputDir(), domain.CacheDirName), filepath.Dir(staging))
}

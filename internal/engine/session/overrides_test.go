package session_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/engine/session"
)

func TestOverrides(t *testing.T) {
	o := session.NewOverrides()
	assert.False(t, o.Disabled("fit"))

	outer := o.Disable("fit", "plot")
	inner := o.Disable("fit")
	assert.True(t, o.Disabled("fit"))
	assert.True(t, o.Disabled("plot"))
	assert.False(t, o.Disabled("train"))

	inner()
	inner()
	assert.True(t, o.Disabled("fit"), "the outer scope still holds fit")

	outer()
	assert.False(t, o.Disabled("fit"))
	assert.False(t, o.Disabled("plot"))

	t.Run("empty task names are never disabled", func(t *testing.T) {
		restore := o.Disable("")
		defer restore()
		assert.False(t, o.Disabled(""))
	})

	t.Run("scope ends on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			o.WithCachingDisabled([]string{"fit"}, func() {
				assert.True(t, o.Disabled("fit"))
				panic("boom")
			})
		})
		assert.False(t, o.Disabled("fit"))
	})
}

func TestSession_CachingDisabled(t *testing.T) {
	overrides := session.NewOverrides()
	h := newHarness(t, harnessOpts{options: []session.Option{session.WithOverrides(overrides)}})
	ctx := context.Background()
	var calls atomic.Int32

	first := h.session(t, workerOutput, "v1", workerInputs, "T")
	_, err := first.Run(ctx, fillWorker(&calls))
	require.NoError(t, err)
	require.Equal(t, 1, entryCount(t, h.store))

	before, err := h.store.List(ctx)
	require.NoError(t, err)

	overrides.WithCachingDisabled([]string{"T"}, func() {
		// An entry exists, but T recomputes.
		s := h.session(t, workerOutput, "v1", workerInputs, "T")
		restored, err := s.Run(ctx, fillWorker(&calls))
		require.NoError(t, err)
		assert.False(t, restored)
		assert.Equal(t, "[1,1,1,1]", readOutput(t, s.OutputDir(), "result.json"))

		// A new fingerprint is never written.
		other := h.session(t, "worker_005", "v1", map[string]any{"n": 5, "val": 1}, "T")
		restored, err = other.TryRestore(ctx)
		require.NoError(t, err)
		assert.False(t, restored)
		require.NoError(t, fillWorker(&calls)(ctx, other.OutputDir()))
		require.NoError(t, other.Commit(ctx))

		// Other tasks are unaffected.
		unaffected := h.session(t, workerOutput, "v1", workerInputs, "U")
		restored, err = unaffected.TryRestore(ctx)
		require.NoError(t, err)
		assert.True(t, restored)
	})
	assert.Equal(t, int32(3), calls.Load())

	after, err := h.store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "the store is unaffected by disabled sessions")

	// Outside the scope T restores again, replacing the files computed while disabled.
	s := h.session(t, "worker_005", "v1", map[string]any{"n": 5, "val": 1}, "T")
	restored, err := s.TryRestore(ctx)
	require.NoError(t, err)
	assert.False(t, restored, "nothing was stored for worker_005")

	again := h.session(t, workerOutput, "v1", workerInputs, "T")
	restored, err = again.TryRestore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSession_CachingDisabled_EditedOutput(t *testing.T) {
	overrides := session.NewOverrides()
	h := newHarness(t, harnessOpts{options: []session.Option{session.WithOverrides(overrides)}})
	ctx := context.Background()
	var calls atomic.Int32

	var out string
	overrides.WithCachingDisabled([]string{"T"}, func() {
		s := h.session(t, workerOutput, "v1", workerInputs, "T")
		_, err := s.Run(ctx, fillWorker(&calls))
		require.NoError(t, err)
		out = s.OutputDir()
	})

	// Edited output is the caller's again.
	require.NoError(t, os.WriteFile(filepath.Join(out, "result.json"), []byte("tuned by hand"), domain.FilePerm))

	s := h.session(t, workerOutput, "v1", workerInputs, "T")
	restored, err := s.TryRestore(ctx)
	require.ErrorIs(t, err, domain.ErrUnexpectedContent)
	assert.False(t, restored)
	assert.Equal(t, "tuned by hand", readOutput(t, out, "result.json"))
	assert.Zero(t, entryCount(t, h.store))
}

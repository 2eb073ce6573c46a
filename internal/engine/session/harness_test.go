package session_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/memo/internal/adapters/cas"
	"go.trai.ch/memo/internal/adapters/fs"
	"go.trai.ch/memo/internal/adapters/lock"
	"go.trai.ch/memo/internal/adapters/logger"
	"go.trai.ch/memo/internal/adapters/telemetry"
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/memo/internal/engine/session"
)

const workerOutput = "worker_004"

var workerInputs = map[string]any{"n": 4, "val": 1}

type harness struct {
	root  string
	store *cas.Store
	mgr   *session.Manager
}

type harnessOpts struct {
	link    domain.LinkMode
	locker  ports.Locker
	tracer  ports.Tracer
	options []session.Option
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()

	root := t.TempDir()
	store := cas.NewStore(fs.NewHasher(fs.NewWalker()))
	require.NoError(t, store.SetRoot(root))

	if opts.link == "" {
		opts.link = domain.LinkSymlink
	}
	linker, err := fs.NewLinker(opts.link)
	require.NoError(t, err)

	if opts.locker == nil {
		opts.locker = lock.NewFileLocker(10*time.Second, 5*time.Millisecond)
	}
	if opts.tracer == nil {
		opts.tracer = telemetry.NewNoOpTracer()
	}

	mgr := session.NewManager(store, opts.locker, linker, logger.NewDiscard(), opts.tracer, opts.options...)
	return &harness{root: root, store: store, mgr: mgr}
}

func (h *harness) session(t *testing.T, output, codeIdentity string, inputs map[string]any, task string) *session.Session {
	t.Helper()
	s, err := h.mgr.NewSession(output, codeIdentity, inputs, task)
	require.NoError(t, err)
	return s
}

func (h *harness) outputDir(output string) string {
	return filepath.Join(h.root, output)
}

// fillWorker mimics the expensive computation: it writes [1,1,1,1] for n=4, val=1.
func fillWorker(calls *atomic.Int32) func(ctx context.Context, dir string) error {
	return func(_ context.Context, dir string) error {
		calls.Add(1)
		if err := os.MkdirAll(filepath.Join(dir, "parts"), domain.DirPerm); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "parts", "0.txt"), []byte("1,1"), domain.FilePerm); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "result.json"), []byte("[1,1,1,1]"), domain.FilePerm)
	}
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func entryCount(t *testing.T, store *cas.Store) int {
	t.Helper()
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	return len(entries)
}

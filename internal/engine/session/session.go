package session

import (
	"context"
	"sync"

	fsadapter "go.trai.ch/memo/internal/adapters/fs" //nolint:depguard // Output locations hold read-only copies
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/zerr"
)

// State is the position of a session in the restore/compute/commit protocol.
type State int

const (
	// StateFresh is a new session; TryRestore has not run.
	StateFresh State = iota
	// StateComputing follows a miss: the caller computes, then commits.
	StateComputing
	// StateRestored follows a hit: the output location mirrors the entry.
	StateRestored
	// StateDone follows a commit.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateComputing:
		return "computing"
	case StateRestored:
		return "restored"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Session is bound to one output location and one fingerprint.
//
// The protocol is TryRestore, then on a miss the computation, then Commit. A failed
// call leaves the state unchanged so it can be retried.
type Session struct {
	m            *Manager
	output       string
	outputDir    string
	codeIdentity string
	canonical    []byte
	fp           domain.Fingerprint
	taskName     string

	mu       sync.Mutex
	state    State
	disabled bool
}

// Fingerprint returns the fingerprint the session is bound to.
func (s *Session) Fingerprint() domain.Fingerprint { return s.fp }

// Output returns the output location as given to NewSession.
func (s *Session) Output() string { return s.output }

// OutputDir returns the absolute output location.
func (s *Session) OutputDir() string { return s.outputDir }

// TaskName returns the task name used for overrides.
func (s *Session) TaskName() string { return s.taskName }

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TryRestore mirrors the committed entry into the output location and reports true,
// or clears stale mirrors and reports false so the caller computes. It fails with
// domain.ErrUnexpectedContent, deleting nothing, if the output location holds files
// the cache did not place there. With caching disabled for the task it reports false
// without consulting the store.
func (s *Session) TryRestore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFresh {
		return false, s.invalidState("TryRestore")
	}

	ctx, span := s.startSpan(ctx, "memo.try_restore")
	defer span.End()

	result, err := s.restoreOrClear(ctx)
	if err != nil {
		result = resultError
		span.RecordError(err)
	}
	span.SetAttribute("memo.result", result)
	s.m.metrics.observeRestore(result)
	if err != nil {
		return false, err
	}

	switch result {
	case resultHit:
		s.state = StateRestored
		s.m.logger.Info("restored from cache", "output", s.output, "fingerprint", s.fp.Short())
		return true, nil
	case resultDisabled:
		s.disabled = true
		s.m.logger.Debug("caching disabled", "output", s.output, "task", s.taskName)
	default:
		s.m.logger.Debug("cache miss", "output", s.output, "fingerprint", s.fp.Short())
	}
	s.state = StateComputing
	return false, nil
}

func (s *Session) restoreOrClear(ctx context.Context) (string, error) {
	if s.m.overrides.Disabled(s.taskName) {
		return resultDisabled, s.clearOutput()
	}

	ok, err := s.m.store.Exists(s.output, s.fp)
	if err != nil {
		return "", err
	}
	if err := s.clearOutput(); err != nil {
		return "", err
	}
	if !ok {
		return resultMiss, nil
	}
	if err := s.restore(ctx); err != nil {
		return "", err
	}
	return resultHit, nil
}

// Commit publishes the computed output location under the fingerprint lock and
// replaces it with mirrors of the new entry. If another producer committed the same
// fingerprint first, the computed files are discarded and its entry is restored
// instead. With caching disabled for the task the store is left untouched.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateComputing {
		return s.invalidState("Commit")
	}
	return s.commit(ctx, s.outputDir)
}

// Run restores the output location or computes it. compute writes into dir, a
// private staging directory, which is published and mirrored into the output
// location under the fingerprint lock; producers that share an output location can
// therefore run concurrently. With caching disabled compute writes into the output
// location directly. Run reports whether the result was restored.
func (s *Session) Run(ctx context.Context, compute func(ctx context.Context, dir string) error) (bool, error) {
	ctx, span := s.startSpan(ctx, "memo.run")
	defer span.End()

	restored, err := s.TryRestore(ctx)
	if err != nil || restored {
		if err != nil {
			span.RecordError(err)
		}
		return restored, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateComputing {
		return false, s.invalidState("Run")
	}

	dir := s.outputDir
	if !s.disabled {
		staging, err := s.m.store.StagingDir(s.output)
		if err != nil {
			span.RecordError(err)
			return false, err
		}
		defer func() { _ = fsadapter.RemoveTree(staging) }()
		dir = staging
	}

	if err := compute(ctx, dir); err != nil {
		span.RecordError(err)
		return false, zerr.With(zerr.Wrap(err, "compute failed"), "output", s.output)
	}

	if err := s.commit(ctx, dir); err != nil {
		span.RecordError(err)
		return false, err
	}
	return false, nil
}

// commit runs with s.mu held. srcDir is the output location itself or a staging directory.
func (s *Session) commit(ctx context.Context, srcDir string) error {
	ctx, span := s.startSpan(ctx, "memo.commit")
	defer span.End()

	start := s.m.now()
	result, err := s.publish(ctx, srcDir)
	if err != nil {
		result = resultError
		span.RecordError(err)
	}
	span.SetAttribute("memo.result", result)
	s.m.metrics.observeCommit(result, s.m.now().Sub(start))
	if err != nil {
		return err
	}

	s.state = StateDone
	switch result {
	case resultCommitted:
		s.m.logger.Info("committed to cache", "output", s.output, "fingerprint", s.fp.Short())
	case resultDeduped:
		s.m.logger.Info("already committed by another producer", "output", s.output, "fingerprint", s.fp.Short())
	}
	return nil
}

func (s *Session) publish(ctx context.Context, srcDir string) (string, error) {
	inPlace := srcDir == s.outputDir

	if s.disabled {
		// Record what the computation produced so a later session may clear it
		// as long as it is left unchanged.
		members, err := computedMembers(s.outputDir)
		if err != nil {
			return "", err
		}
		return resultDisabled, s.writeRecord("", members)
	}

	lockPath, err := s.m.store.LockPath(s.fp)
	if err != nil {
		return "", err
	}
	waitStart := s.m.now()
	lock, err := s.m.locker.Acquire(ctx, lockPath)
	s.m.metrics.observeLockWait(s.m.now().Sub(waitStart))
	if err != nil {
		return "", err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.m.logger.Warn("failed to release lock", "path", lockPath, "error", err.Error())
		}
	}()

	exists, err := s.m.store.Exists(s.output, s.fp)
	if err != nil {
		return "", err
	}

	result := resultDeduped
	if !exists {
		if _, err := s.m.store.Publish(ctx, s.output, s.fp, srcDir, s.manifest()); err != nil {
			return "", err
		}
		result = resultCommitted
	}

	if inPlace {
		err = s.discardOutput()
	} else {
		err = s.clearOutput()
	}
	if err != nil {
		return "", err
	}
	if err := s.restore(ctx); err != nil {
		return "", err
	}
	return result, nil
}

func (s *Session) manifest() domain.Manifest {
	return domain.Manifest{
		Output:       s.output,
		TaskName:     s.taskName,
		CodeIdentity: s.codeIdentity,
		Inputs:       s.canonical,
	}
}

func (s *Session) startSpan(ctx context.Context, name string) (context.Context, ports.Span) {
	return s.m.tracer.Start(ctx, name, ports.WithAttributes(map[string]any{
		"memo.fingerprint": s.fp.String(),
		"memo.output":      s.output,
		"memo.task":        s.taskName,
	}))
}

func (s *Session) invalidState(op string) error {
	return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidSessionState, "operation not allowed"),
		"operation", op), "state", s.state.String())
}

// Package session implements the restore/compute/commit protocol on top of an
// artifact store.
package session

import (
	"time"

	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
)

// Manager creates sessions that share one store, locker and linker.
type Manager struct {
	store     ports.ArtifactStore
	locker    ports.Locker
	linker    ports.Linker
	logger    ports.Logger
	tracer    ports.Tracer
	metrics   *Metrics
	overrides *Overrides
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records session outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithOverrides makes the manager consult o for disabled task names.
func WithOverrides(o *Overrides) Option {
	return func(mgr *Manager) {
		mgr.overrides = o
	}
}

// NewManager creates a Manager. Without options it keeps unregistered metrics and
// a private override set.
func NewManager(
	store ports.ArtifactStore,
	locker ports.Locker,
	linker ports.Linker,
	logger ports.Logger,
	tracer ports.Tracer,
	opts ...Option,
) *Manager {
	m := &Manager{
		store:  store,
		locker: locker,
		linker: linker,
		logger: logger,
		tracer: tracer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	if m.overrides == nil {
		m.overrides = NewOverrides()
	}
	return m
}

// Overrides returns the set of disabled task names.
func (m *Manager) Overrides() *Overrides {
	return m.overrides
}

// NewSession binds a session to an output location and the fingerprint of
// codeIdentity and inputs. It fails with domain.ErrRootNotSet before the store has a root.
func (m *Manager) NewSession(output, codeIdentity string, inputs map[string]any, taskName string) (*Session, error) {
	if _, err := m.store.Root(); err != nil {
		return nil, err
	}

	canonical, err := domain.CanonicalInputs(codeIdentity, inputs)
	if err != nil {
		return nil, err
	}

	outputDir, err := m.store.OutputDir(output)
	if err != nil {
		return nil, err
	}

	return &Session{
		m:            m,
		output:       output,
		outputDir:    outputDir,
		codeIdentity: codeIdentity,
		canonical:    canonical,
		fp:           domain.FingerprintOf(canonical),
		taskName:     taskName,
		state:        StateFresh,
	}, nil
}

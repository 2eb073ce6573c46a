package memo

import (
	"context"
	"sync"

	"go.trai.ch/memo/internal/adapters/cas"
	"go.trai.ch/memo/internal/adapters/fs"
	"go.trai.ch/memo/internal/adapters/lock"
	"go.trai.ch/memo/internal/adapters/logger"
	"go.trai.ch/memo/internal/adapters/telemetry"
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/memo/internal/engine/session"
)

const instrumentationName = "go.trai.ch/memo"

// EntryInfo summarizes a committed entry.
type EntryInfo = domain.EntryInfo

// SweepCandidate is a directory left behind by an interrupted commit or run.
type SweepCandidate = domain.SweepCandidate

// SweepReport lists what Sweep found and what it removed.
type SweepReport = domain.SweepReport

// Sweep candidate kinds.
const (
	SweepOrphanedTemp    = domain.SweepOrphanedTemp
	SweepOrphanedStaging = domain.SweepOrphanedStaging
	SweepIncompleteEntry = domain.SweepIncompleteEntry
)

// Cache is a fingerprint-addressed store below one root directory. Independent
// caches may point at the same root, including from other processes.
type Cache struct {
	store   *cas.Store
	manager *session.Manager
	err     error
}

// New creates a Cache without a root. Call SetCacheRoot before creating sessions.
func New(opts ...Option) *Cache {
	o := options{
		lockTimeout:    domain.DefaultLockTimeout,
		lockRetryDelay: domain.DefaultLockRetryDelay,
		link:           LinkAuto,
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.NewDiscard()
	if o.logger != nil {
		log = logger.NewFromSlog(o.logger)
	}

	var tracer ports.Tracer = telemetry.NewNoOpTracer()
	if o.tracerProvider != nil {
		tracer = telemetry.NewOTelTracerFromProvider(o.tracerProvider, instrumentationName)
	}

	store := cas.NewStore(fs.NewHasher(fs.NewWalker()))
	linker, err := fs.NewLinker(o.link)
	if err != nil {
		return &Cache{store: store, err: err}
	}

	return &Cache{
		store: store,
		manager: session.NewManager(
			store,
			lock.NewFileLocker(o.lockTimeout, o.lockRetryDelay),
			linker,
			log,
			tracer,
			session.WithMetrics(session.NewMetrics(o.registerer)),
		),
	}
}

// SetCacheRoot sets the root directory, creating it if needed. Setting the same
// path again is a no-op; a different path fails with ErrAlreadyConfigured.
func (c *Cache) SetCacheRoot(path string) error {
	if c.err != nil {
		return c.err
	}
	return c.store.SetRoot(path)
}

// Root returns the configured root or ErrRootNotSet.
func (c *Cache) Root() (string, error) {
	return c.store.Root()
}

// NewSession binds a session to the output location output, relative to the root,
// and to the fingerprint of codeIdentity and inputs. taskName is matched against
// WithCachingDisabled and may be empty.
//
// Input values may be nil, booleans, numbers, strings, byte slices, values
// implementing encoding.TextMarshaler or fmt.Stringer, and slices, arrays and maps
// of those. Integers and floats are distinct: 4 and 4.0 fingerprint differently.
func (c *Cache) NewSession(output, codeIdentity string, inputs map[string]any, taskName string) (*Session, error) {
	if c.err != nil {
		return nil, c.err
	}
	s, err := c.manager.NewSession(output, codeIdentity, inputs, taskName)
	if err != nil {
		return nil, err
	}
	return &Session{s: s}, nil
}

// WithCachingDisabled runs fn while sessions of the named tasks always recompute
// and never write to the store. Scopes nest and end when fn returns or panics.
func (c *Cache) WithCachingDisabled(taskNames []string, fn func()) {
	if c.manager == nil {
		fn()
		return
	}
	c.manager.Overrides().WithCachingDisabled(taskNames, fn)
}

// List returns every committed entry below the root.
func (c *Cache) List(ctx context.Context) ([]EntryInfo, error) {
	return c.store.List(ctx)
}

// Verify re-hashes an entry and fails with ErrEntryCorrupt if its files changed.
func (c *Cache) Verify(output, fingerprint string) error {
	return c.store.Verify(output, domain.Fingerprint(fingerprint))
}

// Sweep reports directories left behind by interrupted commits and runs, and
// removes those decide accepts. A nil decide only reports. The cache applies no
// policy of its own.
func (c *Cache) Sweep(ctx context.Context, decide func(SweepCandidate) bool) (*SweepReport, error) {
	return c.store.Sweep(ctx, decide)
}

// Fingerprint returns the fingerprint a session for codeIdentity and inputs is bound to.
func Fingerprint(codeIdentity string, inputs map[string]any) (string, error) {
	canonical, err := domain.CanonicalInputs(codeIdentity, inputs)
	if err != nil {
		return "", err
	}
	return domain.FingerprintOf(canonical).String(), nil
}

// Session is bound to one output location and one fingerprint. Call TryRestore,
// then on a miss compute into OutputDir and call Commit; or call Run.
type Session struct {
	s *session.Session
}

// Fingerprint returns the 64 character hex fingerprint.
func (s *Session) Fingerprint() string {
	return s.s.Fingerprint().String()
}

// OutputDir returns the absolute output location.
func (s *Session) OutputDir() string {
	return s.s.OutputDir()
}

// TryRestore mirrors a committed entry into the output location and reports true,
// or reports false so the caller computes. A miss is never an error. It fails with
// ErrUnexpectedContent, without deleting anything, if the output location holds
// files the cache did not place there.
func (s *Session) TryRestore(ctx context.Context) (bool, error) {
	return s.s.TryRestore(ctx)
}

// Commit stores the output location's files as the entry for the fingerprint and
// replaces them with mirrors of it. If another producer committed first, the
// computed files are discarded in favor of its entry.
func (s *Session) Commit(ctx context.Context) error {
	return s.s.Commit(ctx)
}

// Run restores the output location, or calls compute with a private directory to
// write into and commits it. It reports whether the result was restored.
func (s *Session) Run(ctx context.Context, compute func(ctx context.Context, dir string) error) (bool, error) {
	return s.s.Run(ctx, compute)
}

var (
	defaultOnce  sync.Once
	defaultCache *Cache
)

// Default returns the process-wide cache used by the package-level functions.
func Default() *Cache {
	defaultOnce.Do(func() {
		defaultCache = New()
	})
	return defaultCache
}

// SetCacheRoot sets the root of the Default cache.
func SetCacheRoot(path string) error {
	return Default().SetCacheRoot(path)
}

// NewSession creates a session on the Default cache.
func NewSession(output, codeIdentity string, inputs map[string]any, taskName string) (*Session, error) {
	return Default().NewSession(output, codeIdentity, inputs, taskName)
}

// WithCachingDisabled disables caching for the named tasks of the Default cache while fn runs.
func WithCachingDisabled(taskNames []string, fn func()) {
	Default().WithCachingDisabled(taskNames, fn)
}

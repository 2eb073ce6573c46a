package session

import "sync"

// Overrides is a process-wide set of task names whose caching is disabled.
// Scopes nest: a name stays disabled until every scope that named it has ended.
type Overrides struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewOverrides returns an empty set.
func NewOverrides() *Overrides {
	return &Overrides{counts: make(map[string]int)}
}

// Disable disables caching for names until the returned function is called.
// Calling the function more than once has no further effect.
func (o *Overrides) Disable(names ...string) (restore func()) {
	o.mu.Lock()
	for _, name := range names {
		o.counts[name]++
	}
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for _, name := range names {
				if o.counts[name]--; o.counts[name] <= 0 {
					delete(o.counts, name)
				}
			}
		})
	}
}

// Disabled reports whether caching is disabled for name. Sessions without a
// task name are never disabled.
func (o *Overrides) Disabled(name string) bool {
	if name == "" {
		return false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.counts[name] > 0
}

// WithCachingDisabled runs fn with caching disabled for names. The previous state
// is restored when fn returns or panics.
func (o *Overrides) WithCachingDisabled(names []string, fn func()) {
	restore := o.Disable(names...)
	defer restore()
	fn()
}

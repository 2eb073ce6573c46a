package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Restore results.
const (
	resultHit      = "hit"
	resultMiss     = "miss"
	resultDisabled = "disabled"
	resultError    = "error"
)

// Commit results.
const (
	resultCommitted = "committed"
	resultDeduped   = "deduped"
)

// Metrics counts session outcomes.
type Metrics struct {
	restores       *prometheus.CounterVec
	commits        *prometheus.CounterVec
	commitDuration prometheus.Histogram
	lockWait       prometheus.Histogram
}

// NewMetrics creates the session metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		restores: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "memo",
			Name:      "restores_total",
			Help:      "Restore attempts by result (hit, miss, disabled, error).",
		}, []string{"result"}),
		commits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "memo",
			Name:      "commits_total",
			Help:      "Commits by result (committed, deduped, disabled, error).",
		}, []string{"result"}),
		commitDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "memo",
			Name:      "commit_duration_seconds",
			Help:      "Time spent in commit, including the lock wait.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		lockWait: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "memo",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for fingerprint locks.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) observeRestore(result string) {
	m.restores.WithLabelValues(result).Inc()
}

func (m *Metrics) observeCommit(result string, took time.Duration) {
	m.commits.WithLabelValues(result).Inc()
	m.commitDuration.Observe(took.Seconds())
}

func (m *Metrics) observeLockWait(took time.Duration) {
	m.lockWait.Observe(took.Seconds())
}

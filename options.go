package memo

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/memo/internal/core/domain"
)

// LinkMode selects how entries are mirrored into output locations.
type LinkMode = domain.LinkMode

// Link modes.
const (
	LinkAuto    = domain.LinkAuto
	LinkSymlink = domain.LinkSymlink
	LinkCopy    = domain.LinkCopy
)

type options struct {
	lockTimeout    time.Duration
	lockRetryDelay time.Duration
	link           LinkMode
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	registerer     prometheus.Registerer
}

// Option configures a Cache.
type Option func(*options)

// WithLockTimeout bounds how long a commit waits for another producer of the same
// fingerprint. The default is ten minutes.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// WithLockRetryDelay sets how often a held lock is polled. The default is 50ms.
func WithLockRetryDelay(d time.Duration) Option {
	return func(o *options) {
		o.lockRetryDelay = d
	}
}

// WithLinkMode selects symlinks, copies, or symlinks with a copy fallback (the default).
func WithLinkMode(mode LinkMode) Option {
	return func(o *options) {
		o.link = mode
	}
}

// WithLogger reports restores and commits to l. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTracerProvider records session operations as spans on tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithRegisterer registers restore and commit metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"go.trai.ch/memo/internal/ui/output"
	"go.trai.ch/memo/internal/ui/style"
)

// PrettyHandler renders memo's terminal log: one colored line per record with
// key=value attributes, e.g. "computing output=worker_004 fingerprint=ce15a2794ecd".
// Clones made by WithAttrs and WithGroup share one writer lock, so lines of a
// memoized command's output never interleave with cache messages.
type PrettyHandler struct {
	out    *termenv.Output
	mu     *sync.Mutex
	level  slog.Leveler
	prefix string
	attrs  []string
}

// NewPrettyHandler creates a PrettyHandler writing to w, or stderr when w is nil.
// The level is read on every record, so a *slog.LevelVar can be changed later.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &PrettyHandler{
		out:   output.New(w),
		mu:    &sync.Mutex{},
		level: level,
	}
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler. Errors get a cross, warnings an exclamation mark
// and debug lines (span timings with --verbose) a muted color.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	var color termenv.Color

	switch {
	case r.Level >= slog.LevelError:
		msg = style.Cross + " " + msg
		color = termenv.RGBColor(string(style.Red))
	case r.Level >= slog.LevelWarn:
		msg = style.Warning + " " + msg
		color = termenv.RGBColor(string(style.Yellow))
	case r.Level < slog.LevelInfo:
		color = termenv.RGBColor(string(style.Slate))
	default:
		color = termenv.RGBColor(string(style.Iris))
	}

	parts := append(make([]string, 0, len(h.attrs)+r.NumAttrs()), h.attrs...)
	r.Attrs(func(attr slog.Attr) bool {
		parts = appendAttr(parts, h.prefix, attr)
		return true
	})
	if len(parts) > 0 {
		msg += " " + strings.Join(parts, " ")
	}

	styled := h.out.String(msg).Foreground(color)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.WriteString(styled.String() + "\n")
	return err
}

// WithAttrs implements slog.Handler. The attributes are rendered once, here.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = h.attrs[:len(h.attrs):len(h.attrs)]
	for _, attr := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, attr)
	}
	return &clone
}

// WithGroup implements slog.Handler. Groups nest, so keys become "outer.inner.key".
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// appendAttr renders attr as key=value. Group values are flattened and empty
// attributes dropped, as slog.Handler requires.
func appendAttr(parts []string, prefix string, attr slog.Attr) []string {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return parts
	}

	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			parts = appendAttr(parts, groupPrefix, member)
		}
		return parts
	}

	return append(parts, prefix+attr.Key+"="+quoteValue(attr.Value.String()))
}

// quoteValue quotes values that would otherwise be ambiguous on a key=value line,
// such as command arguments with spaces.
func quoteValue(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// Package logger implements a logging adapter using log/slog.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/memo/internal/core/ports"
)

// messager describes an error that can report its own message without the chain.
// zerr.Error implements it.
type messager interface {
	Message() string
}

// metadataer describes an error that carries key/value context, as zerr.With attaches.
type metadataer interface {
	Metadata() map[string]any
}

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	level    *slog.LevelVar
	jsonMode bool
	output   io.Writer
}

// New creates a new Logger writing pretty output to stderr at info level.
func New() ports.Logger {
	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)
	return &Logger{
		logger: slog.New(NewPrettyHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		level:  level,
		output: os.Stderr,
	}
}

// NewDiscard returns a logger that drops everything.
func NewDiscard() ports.Logger {
	level := &slog.LevelVar{}
	return &Logger{
		logger: slog.New(slog.DiscardHandler),
		level:  level,
		output: io.Discard,
	}
}

// NewFromSlog adapts l. Errors are logged as a single record with an "error"
// attribute. SetOutput and SetJSON replace l's handler.
func NewFromSlog(l *slog.Logger) ports.Logger {
	return &Logger{
		logger:   l,
		level:    &slog.LevelVar{},
		jsonMode: true,
		output:   os.Stderr,
	}
}

// SetOutput updates the logger's output destination.
// It preserves the current JSON mode and level. A nil w means os.Stderr.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.rebuild()
}

// SetJSON switches between JSON and pretty logging.
func (l *Logger) SetJSON(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.jsonMode = enable
	l.rebuild()
}

// SetVerbose enables debug records.
func (l *Logger) SetVerbose(enable bool) {
	if enable {
		l.level.Set(slog.LevelDebug)
		return
	}
	l.level.Set(slog.LevelInfo)
}

// rebuild replaces the handler. Callers hold l.mu.
func (l *Logger) rebuild() {
	w := l.output
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: l.level}
	if l.jsonMode {
		l.logger = slog.New(slog.NewJSONHandler(w, opts))
		return
	}
	l.logger = slog.New(NewPrettyHandler(w, opts))
}

// Debug logs a diagnostic message. It is dropped unless verbose is on.
func (l *Logger) Debug(msg string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Debug(msg, args...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg, args...)
}

// Error logs an error together with its cause chain.
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err == nil {
		return
	}

	if l.jsonMode {
		l.logger.Error("operation failed", "error", err)
		return
	}

	l.logger.Error(formatErrorEntries(collectErrorEntries(err)))
}

type errorEntry struct {
	message  string
	metadata map[string]any
}

// collectErrorEntries walks the chain of err. zerr layers contribute their own
// message and metadata; joined errors are visited branch by branch. A layer
// with an empty message lends its metadata to the next one that has text.
func collectErrorEntries(err error) []errorEntry {
	var entries []errorEntry
	pending := map[string]any{}

	var walk func(error)
	walk = func(current error) {
		for current != nil {
			if joined, ok := current.(interface{ Unwrap() []error }); ok {
				for _, branch := range joined.Unwrap() {
					walk(branch)
				}
				return
			}

			m, ok := current.(messager)
			if !ok {
				// Standard error: its text already includes anything below it.
				entries = append(entries, errorEntry{message: current.Error(), metadata: takeMetadata(pending)})
				return
			}

			if md, ok := current.(metadataer); ok {
				maps.Copy(pending, md.Metadata())
			}
			if m.Message() != "" {
				entries = append(entries, errorEntry{message: m.Message(), metadata: takeMetadata(pending)})
			}
			current = errors.Unwrap(current)
		}
	}
	walk(err)

	return entries
}

func takeMetadata(pending map[string]any) map[string]any {
	if len(pending) == 0 {
		return nil
	}
	out := maps.Clone(pending)
	clear(pending)
	return out
}

// formatErrorEntries renders entries as a headline followed by an indented
// "Caused by" list.
func formatErrorEntries(entries []errorEntry) string {
	var formattedLines []string

	for i, entry := range entries {
		lines := strings.Split(entry.message, "\n")
		lines[0] += formatMetadata(entry.metadata)

		if i == 0 {
			formattedLines = append(formattedLines, "Error: "+lines[0])
			for _, line := range lines[1:] {
				formattedLines = append(formattedLines, "       "+line)
			}
			continue
		}

		if i == 1 {
			formattedLines = append(formattedLines, "", "  Caused by:")
		}
		formattedLines = append(formattedLines, "    → "+lines[0])
		for _, line := range lines[1:] {
			formattedLines = append(formattedLines, "      "+line)
		}
	}

	return strings.Join(formattedLines, "\n")
}

func formatMetadata(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	var b strings.Builder
	for _, key := range slices.Sorted(maps.Keys(md)) {
		fmt.Fprintf(&b, " %s=%v", key, md[key])
	}
	return b.String()
}

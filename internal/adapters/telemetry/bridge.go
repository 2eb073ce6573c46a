package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/memo/internal/core/ports"
)

var _ sdktrace.SpanProcessor = (*LogBridge)(nil)

// LogBridge implements sdktrace.SpanProcessor and reports finished spans to a logger.
type LogBridge struct {
	logger ports.Logger
}

// NewLogBridge returns a new LogBridge.
func NewLogBridge(logger ports.Logger) *LogBridge {
	return &LogBridge{logger: logger}
}

// OnStart does nothing.
func (b *LogBridge) OnStart(_ context.Context, _ sdktrace.ReadWriteSpan) {}

// OnEnd logs the span with its attributes and duration.
func (b *LogBridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if !s.SpanContext().IsValid() {
		return
	}

	args := make([]any, 0, 2+2*len(s.Attributes()))
	args = append(args, "duration", s.EndTime().Sub(s.StartTime()).Round(time.Millisecond).String())
	for _, kv := range s.Attributes() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}

	if s.Status().Code == codes.Error {
		desc := s.Status().Description
		if desc == "" {
			desc = "span failed"
		}
		args = append(args, "error", desc)
		b.logger.Warn(s.Name(), args...)
		return
	}
	b.logger.Debug(s.Name(), args...)
}

// ForceFlush does nothing.
func (b *LogBridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *LogBridge) Shutdown(_ context.Context) error {
	return nil
}

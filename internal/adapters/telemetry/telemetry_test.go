package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/memo/internal/adapters/telemetry"
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/memo/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestOTelTracer_Start(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := telemetry.NewOTelTracerFromProvider(tp, "test")

	_, span := tracer.Start(context.Background(), "memo.commit", ports.WithAttributes(map[string]any{
		"memo.fingerprint": domain.Fingerprint("abc"),
		"memo.task":        "fit",
	}))
	span.SetAttribute("memo.entries", 3)
	span.SetAttribute("memo.deduped", true)
	span.SetAttribute("memo.names", []string{"a", "b"})
	span.RecordError(errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "memo.commit", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "abc", attrs["memo.fingerprint"].AsString())
	assert.Equal(t, "fit", attrs["memo.task"].AsString())
	assert.Equal(t, int64(3), attrs["memo.entries"].AsInt64())
	assert.True(t, attrs["memo.deduped"].AsBool())
	assert.Equal(t, []string{"a", "b"}, attrs["memo.names"].AsStringSlice())
}

func TestNoOpTracer(t *testing.T) {
	tracer := telemetry.NewNoOpTracer()
	ctx := context.Background()

	got, span := tracer.Start(ctx, "noop")
	assert.Equal(t, ctx, got)
	span.SetAttribute("k", "v")
	span.RecordError(errors.New("ignored"))
	span.End()
}

func TestLogBridge(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewLogBridge(logger)))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := telemetry.NewOTelTracerFromProvider(tp, "test")

	logger.EXPECT().Debug("memo.try_restore", "duration", gomock.Any(), "memo.result", "hit")
	_, span := tracer.Start(context.Background(), "memo.try_restore")
	span.SetAttribute("memo.result", "hit")
	span.End()

	logger.EXPECT().Warn("memo.commit", "duration", gomock.Any(), "error", "lock timeout")
	_, span = tracer.Start(context.Background(), "memo.commit")
	span.RecordError(errors.New("lock timeout"))
	span.End()
}

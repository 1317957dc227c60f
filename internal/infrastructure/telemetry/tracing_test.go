package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prostor/erpsync/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartSpan(context.Background(), "catalog_sync.daily",
		telemetry.WithAttribute(telemetry.SpanAttrRunKind, "daily"),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	assert.NotEmpty(t, telemetry.TraceID(ctx))
	assert.NotEmpty(t, telemetry.SpanID(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "catalog_sync.daily", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Contains(t, spans[0].Attributes(), attribute.String(telemetry.SpanAttrRunKind, "daily"))
}

func TestSetAttributes_SkipsNonStringKeys(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrChangeCount, 3,
		42, "ignored",
		"dangling",
	)
	span.End()

	attrs := sr.Ended()[0].Attributes()
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Int(telemetry.SpanAttrChangeCount, 3), attrs[0])
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(span, nil)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "boom", ended.Status().Description)
	require.Len(t, ended.Events(), 1)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.AddEvent(span, "throttled", "wait_ms", int64(1100))
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "throttled", events[0].Name)
	assert.Contains(t, events[0].Attributes, attribute.Int64("wait_ms", 1100))
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.TraceID(context.Background()))
	assert.Empty(t, telemetry.SpanID(context.Background()))
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.AddEvent(nil, "e")
		telemetry.RecordError(nil, errors.New("x"))
	})
}

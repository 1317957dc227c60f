package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns nop logger when missing", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
		assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("returns stored logger", func(t *testing.T) {
		stored := zap.NewExample()
		ctx := WithContext(context.Background(), stored)
		assert.Same(t, stored, FromContext(ctx))
	})
}

func TestL(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	t.Run("no correlation fields", func(t *testing.T) {
		L(ctx).Info("plain")
		entry := recorded.TakeAll()[0]
		assert.Empty(t, entry.Context)
	})

	t.Run("request, run and trace fields", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})
		enriched := trace.ContextWithSpanContext(ctx, spanCtx)
		enriched = WithRequestID(enriched, "req-1")
		enriched = WithRunID(enriched, "run-1")

		L(enriched).Info("enriched")

		fields := recorded.TakeAll()[0].ContextMap()
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "run-1", fields["run_id"])
	})
}

func TestGetters(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetRunID(ctx))

	ctx = WithRunID(WithRequestID(ctx, "req-9"), "run-9")
	assert.Equal(t, "req-9", GetRequestID(ctx))
	assert.Equal(t, "run-9", GetRunID(ctx))
}

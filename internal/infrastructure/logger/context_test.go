package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns attached logger", func(t *testing.T) {
		l := zap.NewExample()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("falls back to nop", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
		assert.NotPanics(t, func() { l.Info("dropped") })
	})

	t.Run("ignores nil logger", func(t *testing.T) {
		ctx := WithContext(context.Background(), nil)
		assert.NotNil(t, FromContext(ctx))
	})
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-1")
	l.Info("hello")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Same(t, l, FromContext(ctx))
	require.Len(t, recorded.All(), 1)
	value, ok := fieldValue(recorded.All()[0], "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-1", value)
}

func TestWithPrincipal(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-2")
	ctx, l := WithPrincipal(ctx, FromContext(ctx), "tenant-9", "user-3")
	l.Info("hello")

	assert.Equal(t, "tenant-9", GetTenantID(ctx))
	assert.Equal(t, "user-3", GetUserID(ctx))
	assert.Equal(t, "req-2", GetRequestID(ctx))

	entry := recorded.All()[0]
	for key, want := range map[string]string{"request_id": "req-2", "tenant_id": "tenant-9", "user_id": "user-3"} {
		got, ok := fieldValue(entry, key)
		require.True(t, ok, key)
		assert.Equal(t, want, got)
	}
}

func TestGetters_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTenantID(ctx))
	assert.Empty(t, GetUserID(ctx))
}

func TestWithTraceContext(t *testing.T) {
	t.Run("no span leaves logger unchanged", func(t *testing.T) {
		l := zap.NewNop()
		assert.Same(t, l, WithTraceContext(context.Background(), l))
	})

	t.Run("active span adds ids", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		core, recorded := observer.New(zapcore.InfoLevel)
		ctx = WithContext(ctx, zap.New(core))
		Ctx(ctx).Info("traced")

		entry := recorded.All()[0]
		traceID, ok := fieldValue(entry, "trace_id")
		require.True(t, ok)
		assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
		spanID, ok := fieldValue(entry, "span_id")
		require.True(t, ok)
		assert.Equal(t, span.SpanContext().SpanID().String(), spanID)
	})
}

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
	t.Run("returns no-op logger when absent", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("returns attached logger", func(t *testing.T) {
		l := zap.NewExample()
		assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
	})
}

func TestCorrelationFields(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTenantID(ctx, "tenant-1")
	ctx = WithUserID(ctx, "user-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "tenant-1", GetTenantID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Len(t, CorrelationFields(ctx), 3)
	assert.Empty(t, CorrelationFields(context.Background()))
}

func TestL_AddsTraceAndTenant(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	ctx = WithTenantID(WithContext(ctx, zap.New(core)), "tenant-1")

	L(ctx).Info("Rental created")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

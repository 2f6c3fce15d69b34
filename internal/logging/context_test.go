package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func assertFieldExists(t *testing.T, fields []zap.Field, key, want string) {
	t.Helper()
	for _, f := range fields {
		if f.Key == key {
			assert.Equal(t, want, f.String, "field %q", key)
			return
		}
	}
	t.Errorf("field %q not found in %v", key, fields)
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Run(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithStage(ctx, "generate")
	ctx = WithRequestID(ctx, "req_abc")

	fields := ContextFields(ctx)
	require.Len(t, fields, 3)
	assertFieldExists(t, fields, "run.id", "run-1")
	assertFieldExists(t, fields, "run.stage", "generate")
	assertFieldExists(t, fields, "request.id", "req_abc")
}

func TestContextFields_Trace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	fields := ContextFields(ctx)
	assertFieldExists(t, fields, "trace_id", "4bf92f3577b34da6a3ce929d0e0e4736")
	assertFieldExists(t, fields, "span_id", "00f067aa0ba902b7")
}

func TestWithRunID_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":    "",
		"spaces":   "run 1",
		"slash":    "runs/1",
		"too long": strings.Repeat("a", maxIDLen+1),
		"bad utf8": string([]byte{0xff, 0xfe}),
	}
	for name, id := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Panics(t, func() { WithRunID(context.Background(), id) })
		})
	}
	assert.NotPanics(t, func() { WithRunID(context.Background(), "vm-2024.11_12") })
}

func TestFromContext(t *testing.T) {
	nop := FromContext(context.Background())
	require.NotNil(t, nop)
	nop.Info(context.Background(), "dropped")

	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}
	ctx := WithLogger(context.Background(), logger)

	FromContext(ctx).Info(ctx, "kept")
	assert.Equal(t, 1, observed.Len())
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("3f2c9a6e-6a43-4f1b-9d55-1b0a1a6f3c10"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("../etc"))
	assert.False(t, ValidID(".."))
	assert.False(t, ValidID("."))
	assert.True(t, ValidID("run.2"))
}

package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLoggerTo_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "warn", "json")

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept", "pool", "main")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "main", line["pool"])
}

func TestNewLoggerTo_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "info", "text").Component("pool").Info("opened")
	assert.Contains(t, buf.String(), "component=pool")
	assert.Contains(t, buf.String(), "msg=opened")
}

func TestWithTrace(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "debug", "json")

	l.WithTrace(context.Background()).Debug("no span")
	assert.NotContains(t, buf.String(), "trace_id")
	buf.Reset()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.LogError(ctx, "query failed", assert.AnError, "statement", "users.byID")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", line["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", line["span_id"])
	assert.Equal(t, "users.byID", line["statement"])
	assert.Equal(t, assert.AnError.Error(), line["error"])
}

func TestTracer(t *testing.T) {
	assert.NotNil(t, Tracer(""))
	assert.NotNil(t, Tracer("pool"))
}

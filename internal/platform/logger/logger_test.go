package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.Info("hidden")
	log.Warn("shown", "user_id", "7")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"user_id":"7"`)
}

func TestNewWithWriter_AddsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info").With("component", "registration")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	log.InfoContext(ctx, "traced")
	log.Info("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var traced map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &traced))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traced["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", traced["span_id"])
	assert.Equal(t, "registration", traced["component"])

	assert.NotContains(t, lines[1], "trace_id")
}

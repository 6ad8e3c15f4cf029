package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestJSONLoggerAddsTraceContext(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := New("info", "json", buf)
	log.InfoContext(spanContext(t), "login", "operation", "login")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "login", record["msg"])
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", record["trace_id"])
	require.Equal(t, "00f067aa0ba902b7", record["span_id"])
}

func TestPrettyHandler(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := New("info", "text", buf)

	log.Debug("hidden")
	require.Empty(t, buf.String())

	log.With("component", "mailer").WithGroup("smtp").InfoContext(spanContext(t), "sent", "to", "ann@x.com", "subject", "Verify Your Email")
	line := buf.String()
	require.Contains(t, line, "sent")
	require.Contains(t, line, "component")
	require.Contains(t, line, "smtp.to")
	require.Contains(t, line, `"Verify Your Email"`)
	require.Contains(t, line, "4bf92f3577b34da6a3ce929d0e0e4736")
}

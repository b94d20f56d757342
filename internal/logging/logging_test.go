package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_Levels(t *testing.T) {
	debug := New("debug", "text")
	assert.True(t, debug.Enabled(context.Background(), slog.LevelDebug))

	errOnly := New("error", "json")
	assert.False(t, errOnly.Enabled(context.Background(), slog.LevelInfo))
}

func TestL_DecoratesWithIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req_123")
	ctx = WithClientID(ctx, "acme")

	L(ctx).Info("report generated", "customers", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "report generated", line["msg"])
	assert.Equal(t, "req_123", line["request_id"])
	assert.Equal(t, "acme", line["client_id"])
	assert.Equal(t, float64(2), line["customers"])
}

func TestL_WithoutIDs(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewWithWriter(&buf, "info", "json"))
	L(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "request_id")
	assert.NotContains(t, line, "client_id")
}

func TestFromContext_Default(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestRequestID_OverwritesPrevious(t *testing.T) {
	ctx := WithRequestID(context.Background(), "first")
	ctx = WithRequestID(ctx, "second")
	assert.Equal(t, "second", RequestID(ctx))
	assert.Empty(t, ClientID(ctx))
}

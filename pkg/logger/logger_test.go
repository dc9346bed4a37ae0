package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/logging"
)

func TestWithContextAddsIdentifiers(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "json"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	ctx := logging.WithTraceID(context.Background(), "trace-1")
	ctx = logging.WithUserID(ctx, "user-1")
	log.WithContext(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trace-1", line["trace_id"])
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, "hello", line["msg"])
}

func TestLogRequestLevels(t *testing.T) {
	log := New(LoggingConfig{Level: "info", Format: "json"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.LogRequest(context.Background(), http.MethodGet, "/api/assets", 503, 12*time.Millisecond)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, float64(503), line["status"])
	assert.Equal(t, float64(12), line["duration_ms"])
}

func TestParseLevelFallback(t *testing.T) {
	assert.Equal(t, "info", parseLevel("loud").String())
	assert.Equal(t, "warning", parseLevel("warn").String())
}

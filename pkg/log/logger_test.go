package log_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/keycase/pkg/log"
)

func TestNewWithOptionsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.FormatJSON, "keycase", "test", "1.0.0", slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("visible", log.Keyword("Calculator Add"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "keycase", entry["service"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Equal(t, "Calculator Add", entry["keyword"])
}

func TestNewWithOptionsText(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, "TEXT", "svc", "dev", "0.1", slog.LevelDebug)
	logger.Debug("hello")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "service=svc")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, log.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, log.ParseLevel(" warn "))
	assert.Equal(t, slog.LevelError, log.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel("nonsense"))
}

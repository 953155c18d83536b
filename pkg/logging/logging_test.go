package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/quelldemo/pkg/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewFallbackWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := New(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("dropped")
	logger.Warn("kept", "mode", "client")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "mode=client")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "demo.log")
	logger, cleanup, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, nil)
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

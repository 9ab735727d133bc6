package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		" DEBUG ": slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestOpenAppendsAndFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "labassistant.log")
	logger, err := Open(path, "warn")
	require.NoError(t, err)
	logger.Info("quiet")
	logger.Warn("step rejected", "step", 4)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), `msg="step rejected" step=4`)

	_, err = Open(path, "nope")
	assert.Error(t, err)
}

func TestNilLoggerClose(t *testing.T) {
	var logger *Logger
	assert.NoError(t, logger.Close())
	Discard().Info("dropped")
}

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "witswatch.log")
	logger, closer, err := NewLogger(Config{Level: "debug", Output: path})
	require.NoError(t, err)

	logger.Debug().Str("component", "test").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestNewLoggerLevelFallback(t *testing.T) {
	logger, _, err := NewLogger(Config{Level: "nonsense"})
	require.NoError(t, err)
	assert.Equal(t, "info", logger.GetLevel().String())
}

func TestNewLoggerBadPath(t *testing.T) {
	_, _, err := NewLogger(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}

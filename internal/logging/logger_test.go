package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestNewLogger_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "telemetry.log")

	logger, err := NewLogger("debug", "json", logFile)
	require.NoError(t, err)
	logger.Info("hello", zap.String("destination_key", "G-TEST"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"destination_key\":\"G-TEST\"")
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "console.log")

	logger, err := NewLogger("debug", "console", logFile)
	require.NoError(t, err)
	logger.Info("cycle complete", zap.Int("batch_size", 5))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cycle complete")
	assert.Contains(t, string(data), "batch_size")
}

func TestNewLogger_Stdout(t *testing.T) {
	logger, err := NewLogger("info", "json", "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_FileError(t *testing.T) {
	logger, err := NewLogger("info", "json", "/non/existent/directory/test.log")
	assert.Error(t, err)
	assert.Nil(t, logger)
}

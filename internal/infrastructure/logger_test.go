package infrastructure

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nemgrid/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestInitializeLoggerOnce(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	cfg := config.LoggingConfig{Level: "info", Format: "json", Output: "console"}

	first, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, first)

	// A second initialization returns the same instance.
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)
	assert.Same(t, first, second)

	assert.Same(t, first, GetLogger())
}

func TestInitializeLoggerFileOutput(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	logPath := filepath.Join(t.TempDir(), "logs", "nemgrid.log")
	cfg := config.LoggingConfig{Level: "info", Output: "file", FilePath: logPath}

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	logger.Info("hello")

	assert.FileExists(t, logPath)
	require.NoError(t, CloseLogFile())
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRunID(ctx))

	ctx = WithRunID(ctx, "run-123")
	assert.Equal(t, "run-123", GetRunID(ctx))

	generated := ContextWithRunID(context.Background())
	assert.NotEmpty(t, GetRunID(generated))
	assert.NotEqual(t, GetRunID(generated), GetRunID(ContextWithRunID(context.Background())))
}

func TestNewRunIDUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}

func TestLoggerWithContext(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	ctx := WithRunID(context.Background(), "run-xyz")
	// The derived logger carries the run ID even on log calls that
	// pass no context.
	LoggerWithContext(ctx).Info("report written")
	assert.Contains(t, buf.String(), `"run_id":"run-xyz"`)

	buf.Reset()
	LoggerWithContext(context.Background()).Info("no run")
	assert.NotContains(t, buf.String(), "run_id")
}

package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})

	return NewSlog(slog.New(handler)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelDebug)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	require.Contains(t, out, "level=DEBUG")
	require.Contains(t, out, "debug message")
	require.Contains(t, out, "level=INFO")
	require.Contains(t, out, "info message")
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "warn message")
	require.Contains(t, out, "level=ERROR")
	require.Contains(t, out, "error message")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")
}

func TestSlogLogger_KeyValues(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)

	logger.Info("subscribed", "subject", "sensor.temperature", "capacity", 64)

	out := buf.String()
	require.Contains(t, out, "subject=sensor.temperature")
	require.Contains(t, out, "capacity=64")
}

func TestNewSlogDefault(t *testing.T) {
	require.NotNil(t, NewSlogDefault())
}

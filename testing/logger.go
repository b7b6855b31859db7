package testing

import (
	"testing"

	"github.com/lumenmq/prism/types"
)

// TestLogger implements types.Logger on top of testing.TB, so library logs
// show up interleaved with test output and only when a test fails or -v is
// set.
type TestLogger struct {
	tb testing.TB
}

// Compile-time assertion that TestLogger implements Logger.
var _ types.Logger = (*TestLogger)(nil)

// NewTestLogger creates a logger that writes through t.Logf.
func NewTestLogger(tb testing.TB) *TestLogger {
	tb.Helper()

	return &TestLogger{tb: tb}
}

func (l *TestLogger) log(level, msg string, keysAndValues ...any) {
	args := append([]any{level, msg}, keysAndValues...)
	l.tb.Log(args...)
}

// Debug logs a debug-level message.
func (l *TestLogger) Debug(msg string, keysAndValues ...any) {
	l.log("DEBUG", msg, keysAndValues...)
}

// Info logs an info-level message.
func (l *TestLogger) Info(msg string, keysAndValues ...any) {
	l.log("INFO", msg, keysAndValues...)
}

// Warn logs a warning-level message.
func (l *TestLogger) Warn(msg string, keysAndValues ...any) {
	l.log("WARN", msg, keysAndValues...)
}

// Error logs an error-level message.
func (l *TestLogger) Error(msg string, keysAndValues ...any) {
	l.log("ERROR", msg, keysAndValues...)
}

// Package logger defines the logging abstraction used across go-katcp and a
// slog-backed implementation of it. Components write to the Logger interface
// rather than a concrete framework, so callers can plug in their own.
package logger

// LogLevel is the severity of a log record.
type LogLevel = int8

const (
	// DebugLevel is verbose development output, usually disabled in production.
	DebugLevel LogLevel = iota - 1
	// InfoLevel is the default level.
	InfoLevel
	// WarnLevel marks conditions that deserve attention but no immediate action.
	WarnLevel
	// ErrorLevel marks failures that require attention.
	ErrorLevel
	// FatalLevel logs and then terminates the process.
	FatalLevel
)

// Logger is the structured, leveled logging interface go-katcp components
// write to. Key-value pairs given at the call site are emitted together with
// any pairs accumulated on the logger via With.
type Logger interface {
	// Debug logs msg with the given key-value pairs at DebugLevel.
	Debug(msg string, keysAndValues ...any)
	// Info logs msg with the given key-value pairs at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs msg with the given key-value pairs at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs msg with the given key-value pairs at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs msg with the given key-value pairs at FatalLevel, then
	// calls os.Exit(1), even when FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
	// With returns a child logger carrying the given key-value pairs in
	// addition to those already accumulated. The parent is unaffected.
	With(keyValues ...any) Logger
	// Level reports the minimum enabled level.
	Level() LogLevel
	// SetLevel changes the minimum enabled level at runtime.
	SetLevel(level LogLevel)
}

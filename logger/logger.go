// Package logger defines the minimal structured logging surface the policy
// engine depends on, with adapters for oarkflow/log and log/slog. The
// interface takes alternating key/value pairs so it stays trivial to mock.
package logger

// Logger is the logging capability injected into the engine.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation ID per decision. Implementations must
// be cheap and safe for concurrent calls.
type TraceIDFunc func() string

// NullLogger discards everything; it is the engine default and useful in
// tests.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (NullLogger) Debug(msg string, keyvals ...any) {}
func (NullLogger) Info(msg string, keyvals ...any)  {}
func (NullLogger) Error(msg string, keyvals ...any) {}

package policy

import "github.com/unionhall/policy/logger"

// Logger is re-exported so engine callers don't need a second import for
// the common case.
type Logger = logger.Logger

// WithLogger installs a structured logger on the engine. The default is a
// no-op logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a correlation-ID generator; the ID is attached to
// decision logs and audit entries.
func WithTraceIDFunc(f logger.TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.traceIDFunc = f
		return nil
	}
}

package logger

import (
	"context"
	"fmt"
	"log/slog"
)

// SLogLogger adapts the standard library slog.Logger.
type SLogLogger struct {
	l *slog.Logger
}

func NewSLogLogger(l *slog.Logger) *SLogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SLogLogger{l: l}
}

func (s *SLogLogger) Debug(msg string, keyvals ...any) { s.log(slog.LevelDebug, msg, keyvals) }
func (s *SLogLogger) Info(msg string, keyvals ...any)  { s.log(slog.LevelInfo, msg, keyvals) }
func (s *SLogLogger) Error(msg string, keyvals ...any) { s.log(slog.LevelError, msg, keyvals) }

func (s *SLogLogger) log(level slog.Level, msg string, keyvals []any) {
	attrs := make([]slog.Attr, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals)-1; i += 2 {
		attrs = append(attrs, toAttr(keyvals[i], keyvals[i+1]))
	}
	s.l.LogAttrs(context.Background(), level, msg, attrs...)
}

func toAttr(k, v any) slog.Attr {
	key, ok := k.(string)
	if !ok {
		key = fmt.Sprint(k)
	}
	switch vv := v.(type) {
	case string:
		return slog.String(key, vv)
	case bool:
		return slog.Bool(key, vv)
	case int:
		return slog.Int(key, vv)
	default:
		return slog.Any(key, vv)
	}
}

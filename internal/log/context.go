package log

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// NewContext returns a copy of ctx carrying l. The trace middleware stores the
// request-scoped logger this way so handlers log with the request id attached.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored by NewContext, or one wrapping the slog
// default with component "unknown".
func FromContext(ctx context.Context) *Logger {
	if l, ok := loggerFrom(ctx); ok {
		return l
	}
	return newLogger(slog.Default(), "unknown")
}

func loggerFrom(ctx context.Context) (*Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(loggerKey{}).(*Logger)
	return l, ok
}

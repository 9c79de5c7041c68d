package core

import "context"

type loggerKey struct{}

// ContextWithLogger returns a new context carrying a request-scoped logger.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext extracts the request logger, falling back to the global one.
func LoggerFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok && l != nil {
		return l
	}
	return GetLogger()
}

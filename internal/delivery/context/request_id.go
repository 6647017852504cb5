// Package context carries request-scoped values (request ID, logger, actor) between
// the HTTP layer, the workers and the use cases.
package context

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// KeyRequestID is the key for storing request ID in context.
	KeyRequestID ContextKey = "request_id"

	// KeyLogger is the key for storing request-scoped logger in context.
	KeyLogger ContextKey = "logger"

	// HeaderXRequestID is the HTTP header name for request ID.
	HeaderXRequestID = "X-Request-Id"

	maxRequestIDLength = 64
)

// NormalizeRequestID returns raw when it is a safe correlation ID, otherwise "".
// Client-supplied IDs end up in logs and message attributes, so only short
// tokens of letters, digits and -_.: are accepted.
func NormalizeRequestID(raw string) string {
	if raw == "" || len(raw) > maxRequestIDLength {
		return ""
	}

	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return ""
		}
	}

	return raw
}

// GetRequestID returns the request ID stored on c, assigning a new UUID on first use
// so the access log and the response envelope always agree.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(string(KeyRequestID)).(string); ok && id != "" {
		return id
	}

	id := uuid.New().String()
	SetRequestID(c, id)

	return id
}

// SetRequestID sets the request ID in echo.Context.
func SetRequestID(c echo.Context, requestID string) {
	c.Set(string(KeyRequestID), requestID)
}

// GetRequestIDFromContext returns the request ID on ctx, or "".
func GetRequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(KeyRequestID).(string); ok {
		return id
	}

	return ""
}

// WithRequestID returns a new context with the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, KeyRequestID, requestID)
}

// WithRequestScope stores the request ID and a logger tagged with it on ctx.
func WithRequestScope(ctx context.Context, base *slog.Logger, requestID string) (context.Context, *slog.Logger) {
	reqLogger := base.With(slog.String("request_id", requestID))
	ctx = WithRequestID(ctx, requestID)

	return WithLogger(ctx, reqLogger), reqLogger
}

// GetLogger returns the request-scoped logger on ctx, or nil.
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(KeyLogger).(*slog.Logger); ok {
		return logger
	}

	return nil
}

// GetLoggerOrDefault returns the request-scoped logger on ctx, or fallback.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := GetLogger(ctx); logger != nil {
		return logger
	}

	return fallback
}

// WithLogger returns a new context with the logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, KeyLogger, logger)
}

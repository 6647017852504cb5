package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/errors"

	"github.com/labstack/echo/v4"
)

// LoggerMiddleware writes one access-log line per request. Server errors are always
// logged; everything else only in debug. The matched route template is logged instead
// of the raw path so setup tokens and merchant IDs in URLs stay out of the logs.
type LoggerMiddleware struct {
	logger *slog.Logger
	debug  bool
}

// NewLoggerMiddleware creates a new logger middleware
func NewLoggerMiddleware(logger *slog.Logger, config *config.Config) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger,
		debug:  config.Env.Debug,
	}
}

// Handle processes request logging
func (m *LoggerMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			// The error handler has not run yet; predict the status it will write.
			status = statusOf(err)
		}
		if m.debug || status >= http.StatusInternalServerError {
			m.logRequest(c, start, status, err)
		}

		return err
	}
}

func (m *LoggerMiddleware) logRequest(c echo.Context, start time.Time, status int, err error) {
	req := c.Request()

	fields := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("route", routeOf(c)),
		slog.Int("status", status),
		slog.Duration("latency", time.Since(start)),
		slog.String("remote_ip", c.RealIP()),
		slog.String("user_agent", req.UserAgent()),
	}
	if actor := deliverycontext.GetActor(c); actor != nil {
		fields = append(fields, slog.String("actor", actor.Subject))
	}
	if err != nil {
		fields = append(fields, slog.Any("error", err))
	}

	logLevel := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		logLevel = slog.LevelError
	case status >= http.StatusBadRequest:
		logLevel = slog.LevelWarn
	}

	// The scoped logger already carries request_id.
	logger := deliverycontext.GetLoggerOrDefault(req.Context(), m.logger)
	logger.LogAttrs(req.Context(), logLevel, "HTTP Request", fields...)
}

func statusOf(err error) int {
	if he, ok := errors.AsType[*echo.HTTPError](err); ok {
		return he.Code
	}
	if appErr, ok := errors.AsType[domainerrors.AppError](err); ok {
		return appErr.HTTPCode()
	}

	return http.StatusInternalServerError
}

func routeOf(c echo.Context) string {
	if path := c.Path(); path != "" {
		return path
	}

	return "unmatched"
}

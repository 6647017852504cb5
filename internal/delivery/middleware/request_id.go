package middleware

import (
	"log/slog"

	deliverycontext "onboarding/internal/delivery/context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDMiddleware assigns every request a correlation ID and a logger tagged with it.
type RequestIDMiddleware struct {
	logger *slog.Logger
}

// NewRequestIDMiddleware creates a new Request ID middleware
func NewRequestIDMiddleware(logger *slog.Logger) *RequestIDMiddleware {
	return &RequestIDMiddleware{
		logger: logger,
	}
}

// Process keeps a well-formed X-Request-Id from the caller and replaces anything else
// with a fresh UUID. The ID is echoed back and flows into use cases and welcome events.
func (m *RequestIDMiddleware) Process(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := deliverycontext.NormalizeRequestID(c.Request().Header.Get(deliverycontext.HeaderXRequestID))
		if requestID == "" {
			requestID = uuid.New().String()
		}

		deliverycontext.SetRequestID(c, requestID)
		c.Response().Header().Set(deliverycontext.HeaderXRequestID, requestID)

		ctx, _ := deliverycontext.WithRequestScope(c.Request().Context(), m.logger, requestID)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

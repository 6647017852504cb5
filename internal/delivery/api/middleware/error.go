// Package middleware holds API-only middleware.
package middleware

import (
	"log/slog"
	"net/http"

	"onboarding/internal/delivery/api/response"
	deliverycontext "onboarding/internal/delivery/context"
	domainerrors "onboarding/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ErrorMiddleware renders every failed request in the response envelope.
type ErrorMiddleware struct {
	logger *slog.Logger
}

func NewErrorMiddleware(logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger: logger,
	}
}

// HandleHTTPError is installed as echo's HTTPErrorHandler. Only 5xx are logged here;
// the access log already records client errors.
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPCode() >= http.StatusInternalServerError {
			m.log(c).Error("Request failed",
				slog.String("code", appErr.ErrorCode()),
				slog.Any("error", err),
			)
		}
		_ = response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), detailsOf(appErr))

		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}

		_ = response.Error(c, httpErr.Code, httpErrorCode(httpErr.Code), message, nil)

		return
	}

	m.log(c).Error("Unhandled error",
		slog.Any("error", err),
		slog.String("route", c.Path()),
		slog.String("method", c.Request().Method),
	)

	// For 500 errors, do not expose internal error details to the client
	_ = response.InternalServerError(c, "INTERNAL_ERROR", "Internal server error, please try again later")
}

// httpErrorCode names the errors echo raises itself, before any handler runs: unknown
// routes, wrong methods, oversized bodies and unparsable JSON.
func httpErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "MALFORMED_REQUEST"
	case http.StatusUnauthorized:
		return domainerrors.ErrUnauthorized.ErrorCode()
	case http.StatusForbidden:
		return domainerrors.ErrForbidden.ErrorCode()
	case http.StatusNotFound:
		return domainerrors.ErrNotFound.ErrorCode()
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "REQUEST_TOO_LARGE"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	default:
		return "HTTP_ERROR"
	}
}

func (m *ErrorMiddleware) log(c echo.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger)
}

// detailsOf lists failing fields for validation errors and the plain details otherwise.
func detailsOf(appErr domainerrors.AppError) any {
	var validationErr *domainerrors.ValidationError
	if errors.As(appErr, &validationErr) {
		return validationErr.Fields
	}

	var policyErr *domainerrors.PasswordPolicyError
	if errors.As(appErr, &policyErr) {
		return map[string][]string{"rules": policyErr.Rules}
	}

	if details := appErr.Details(); details != "" {
		return details
	}

	return nil
}

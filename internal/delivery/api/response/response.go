// Package response renders the JSON envelopes shared by every API endpoint.
package response

import (
	"net/http"
	"reflect"

	deliverycontext "onboarding/internal/delivery/context"

	"github.com/labstack/echo/v4"
)

// SuccessResponse wraps every successful payload.
type SuccessResponse struct {
	Data any       `json:"data"`
	Meta *MetaInfo `json:"meta"`
}

// ErrorResponse wraps every failure.
type ErrorResponse struct {
	Error *ErrorInfo `json:"error"`
	Meta  *MetaInfo  `json:"meta"`
}

// ErrorInfo carries the business error code, e.g. TOKEN_EXPIRED, and optional details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"` // field or rule lists for 4xx only
}

// MetaInfo represents response metadata
type MetaInfo struct {
	RequestID string `json:"request_id"`
	Count     *int   `json:"count,omitempty"` // set for list payloads
}

// Success returns a successful response. Slices are sent as lists with a count.
func Success(c echo.Context, statusCode int, data any) error {
	meta := newMeta(c)
	if v := reflect.ValueOf(data); v.Kind() == reflect.Slice {
		n := v.Len()
		meta.Count = &n
		if v.IsNil() {
			data = []any{}
		}
	}

	return c.JSON(statusCode, SuccessResponse{Data: data, Meta: meta})
}

// Created returns 201 with the created resource.
func Created(c echo.Context, data any) error {
	return Success(c, http.StatusCreated, data)
}

// Error returns an error response. Details are dropped for 5xx and for
// authentication or authorization failures.
func Error(c echo.Context, statusCode int, errorCode string, message string, details any) error {
	if statusCode >= http.StatusInternalServerError || statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		details = nil
	}

	return c.JSON(statusCode, ErrorResponse{
		Error: &ErrorInfo{
			Code:    errorCode,
			Message: message,
			Details: details,
		},
		Meta: newMeta(c),
	})
}

// InternalServerError returns a 500 error
func InternalServerError(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusInternalServerError, errorCode, message, nil)
}

func newMeta(c echo.Context) *MetaInfo {
	return &MetaInfo{RequestID: deliverycontext.GetRequestID(c)}
}

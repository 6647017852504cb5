package handler

import (
	"net/http"

	"onboarding/internal/delivery/api/response"
	deliverycontext "onboarding/internal/delivery/context"
	domainerrors "onboarding/internal/domain/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("malformed request body")
	}

	return nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domainerrors.NewValidationError(name, "uuid")
	}

	return id, nil
}

// actorMerchantID reads the merchant ID from the authenticated merchant's subject.
func actorMerchantID(c echo.Context) (uuid.UUID, error) {
	actor := deliverycontext.GetActor(c)
	if actor == nil {
		return uuid.Nil, domainerrors.ErrUnauthorized
	}

	id, err := uuid.Parse(actor.Subject)
	if err != nil {
		return uuid.Nil, domainerrors.ErrForbidden.WithDetails("subject is not a merchant")
	}

	return id, nil
}

func actorSubject(c echo.Context) string {
	if actor := deliverycontext.GetActor(c); actor != nil {
		return actor.Subject
	}

	return ""
}

package handler

import (
	"fmt"
	"net/http"

	"onboarding/internal/delivery/api/response"
	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// BulkHandler serves administrative batch transitions.
type BulkHandler struct {
	bulkUC usecase.BulkActionUsecase
}

// NewBulkHandler is the constructor for BulkHandler
func NewBulkHandler(bulkUC usecase.BulkActionUsecase) *BulkHandler {
	return &BulkHandler{bulkUC: bulkUC}
}

// BulkActionRequest is the body of a bulk verify or reject.
type BulkActionRequest struct {
	MerchantIDs []string          `json:"merchantIds"`
	Action      entity.BulkAction `json:"action"`
}

// ApplyBulkAction runs the action over every listed merchant. Per-merchant failures are
// reported in the results; the request itself only fails on a malformed body.
func (h *BulkHandler) ApplyBulkAction(c echo.Context) error {
	var req BulkActionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(req.MerchantIDs))
	var invalid []domainerrors.FieldError
	for i, raw := range req.MerchantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			invalid = append(invalid, domainerrors.FieldError{Field: fmt.Sprintf("merchantIds[%d]", i), Rule: "uuid"})

			continue
		}
		ids = append(ids, id)
	}
	if len(invalid) > 0 {
		return &domainerrors.ValidationError{Fields: invalid}
	}

	result, err := h.bulkUC.ApplyBulkAction(c.Request().Context(), &entity.BulkActionRequest{
		MerchantIDs: ids,
		Action:      req.Action,
		Actor:       actorSubject(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, result)
}

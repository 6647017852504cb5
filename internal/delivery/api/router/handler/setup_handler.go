package handler

import (
	"net/http"

	"onboarding/internal/delivery/api/response"
	"onboarding/internal/domain/entity"
	"onboarding/internal/usecase"

	"github.com/labstack/echo/v4"
)

// SetupHandler serves the public setup-link flow.
type SetupHandler struct {
	setupUC usecase.SetupUsecase
}

// NewSetupHandler is the constructor for SetupHandler
func NewSetupHandler(setupUC usecase.SetupUsecase) *SetupHandler {
	return &SetupHandler{setupUC: setupUC}
}

// CompleteSetupRequest is the body of a setup completion.
type CompleteSetupRequest struct {
	Token         string               `json:"token"`
	NewPassword   string               `json:"newPassword"`
	Description   *string              `json:"description,omitempty"`
	Website       *string              `json:"website,omitempty"`
	BusinessHours entity.BusinessHours `json:"businessHours,omitempty"`
}

// ValidateToken reports whether the token in the query can still be redeemed.
func (h *SetupHandler) ValidateToken(c echo.Context) error {
	info, err := h.setupUC.ValidateToken(c.Request().Context(), c.QueryParam("token"))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"valid":    true,
		"merchant": info,
	})
}

// CompleteSetup redeems the token and sets the merchant's password.
func (h *SetupHandler) CompleteSetup(c echo.Context) error {
	var req CompleteSetupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	out, err := h.setupUC.CompleteSetup(c.Request().Context(), &usecase.CompleteSetupInput{
		Token:         req.Token,
		NewPassword:   req.NewPassword,
		Description:   req.Description,
		Website:       req.Website,
		BusinessHours: req.BusinessHours,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, out)
}

package handler

import (
	"log/slog"
	"net/http"

	"onboarding/internal/delivery/api/response"
	"onboarding/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// MerchantHandlerParams holds dependencies for MerchantHandler, injected by Fx.
type MerchantHandlerParams struct {
	fx.In

	ProvisioningUC usecase.ProvisioningUsecase
	Logger         *slog.Logger
}

// MerchantHandler serves administrator merchant provisioning.
type MerchantHandler struct {
	provisioningUC usecase.ProvisioningUsecase
	logger         *slog.Logger
}

// NewMerchantHandler is the constructor for MerchantHandler
func NewMerchantHandler(params MerchantHandlerParams) *MerchantHandler {
	return &MerchantHandler{
		provisioningUC: params.ProvisioningUC,
		logger:         params.Logger,
	}
}

// CreateMerchant provisions a merchant account. The temporary password and setup link are
// returned exactly once, in this response.
func (h *MerchantHandler) CreateMerchant(c echo.Context) error {
	var req usecase.CreateMerchantInput
	if err := bind(c, &req); err != nil {
		return err
	}

	out, err := h.provisioningUC.CreateMerchantAccount(c.Request().Context(), &req)
	if err != nil {
		return err
	}

	return response.Created(c, out)
}

// GetMerchant returns a merchant without credential material.
func (h *MerchantHandler) GetMerchant(c echo.Context) error {
	merchantID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	merchant, err := h.provisioningUC.GetMerchant(c.Request().Context(), merchantID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, merchant)
}

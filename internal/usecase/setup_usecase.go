package usecase

import (
	"context"
	"time"

	"onboarding/internal/domain/entity"

	"github.com/google/uuid"
)

// CompleteSetupInput redeems a setup token. Nil optional details leave the stored value untouched.
type CompleteSetupInput struct {
	Token         string               `json:"-"`
	NewPassword   string               `json:"newPassword"`
	Description   *string              `json:"description,omitempty" validate:"omitempty,max=2000"`
	Website       *string              `json:"website,omitempty" validate:"omitempty,url,max=500"`
	BusinessHours entity.BusinessHours `json:"businessHours,omitempty" validate:"omitempty,dive,keys,weekday,endkeys"`
}

// CompleteSetupOutput confirms a redeemed token.
type CompleteSetupOutput struct {
	MerchantID     uuid.UUID `json:"merchantId"`
	SetupCompleted bool      `json:"setupCompleted"`
	CompletedAt    time.Time `json:"completedAt"`
}

// SetupUsecase validates and redeems setup tokens.
type SetupUsecase interface {
	ValidateToken(ctx context.Context, rawToken string) (*entity.SetupInfo, error)
	CompleteSetup(ctx context.Context, input *CompleteSetupInput) (*CompleteSetupOutput, error)
}

// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"onboarding/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// CreateMerchantInput is the explicit provisioning schema. Required fields are validated
// once, and every failing field is reported.
type CreateMerchantInput struct {
	BusinessName       string                    `json:"businessName" validate:"required,max=255"`
	Email              string                    `json:"email" validate:"required,email,max=255"`
	Phone              string                    `json:"phone" validate:"required,max=50"`
	BusinessType       entity.BusinessType       `json:"businessType" validate:"required,businesstype"`
	Address            string                    `json:"address" validate:"required,max=1000"`
	Description        string                    `json:"description,omitempty" validate:"max=2000"`
	Website            string                    `json:"website,omitempty" validate:"omitempty,url,max=500"`
	BusinessHours      entity.BusinessHours      `json:"businessHours,omitempty" validate:"omitempty,dive,keys,weekday,endkeys"`
	VerificationStatus entity.VerificationStatus `json:"verificationStatus,omitempty" validate:"omitempty,verificationstatus"`
}

// --- Output DTOs ---

// CreateMerchantOutput carries the plaintext temporary password exactly once.
type CreateMerchantOutput struct {
	Merchant          *entity.MerchantSummary `json:"merchant"`
	TemporaryPassword string                  `json:"temporaryPassword"`
	SetupLink         string                  `json:"setupLink"`
	SetupExpiresAt    time.Time               `json:"setupExpiresAt"`
}

// ProvisioningUsecase creates merchant accounts and serves admin lookups.
type ProvisioningUsecase interface {
	CreateMerchantAccount(ctx context.Context, input *CreateMerchantInput) (*CreateMerchantOutput, error)
	GetMerchant(ctx context.Context, merchantID uuid.UUID) (*entity.MerchantSummary, error)
}

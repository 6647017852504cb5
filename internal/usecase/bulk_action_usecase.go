package usecase

import (
	"context"

	"onboarding/internal/domain/entity"
)

// BulkActionUsecase applies one verification action across many merchants.
// A per-merchant failure never fails the request.
type BulkActionUsecase interface {
	ApplyBulkAction(ctx context.Context, request *entity.BulkActionRequest) (*entity.BulkActionResult, error)
}

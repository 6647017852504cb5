package usecase

import (
	"context"

	"onboarding/internal/domain/service"
)

// TokenPurgeUsecase removes setup tokens that can no longer be redeemed.
type TokenPurgeUsecase interface {
	PurgeStaleTokens(ctx context.Context) (int64, error)
}

// WelcomeDispatcher sends welcome events in the background after provisioning commits.
type WelcomeDispatcher interface {
	Dispatch(ctx context.Context, event *service.WelcomeEvent)
	Drain(ctx context.Context) error
}

// WelcomeMailUsecase delivers a received welcome event to the merchant's inbox.
type WelcomeMailUsecase interface {
	DeliverWelcome(ctx context.Context, event *service.WelcomeEvent) error
}

package repository

import (
	"context"
	"time"

	"onboarding/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrSetupTokenNotFound is returned when no token matches the given hash.
var ErrSetupTokenNotFound = errors.New("setup token not found")

// SetupTokenRepository defines the persistence contract for setup tokens.
type SetupTokenRepository interface {
	// Create persists a new, unconsumed token.
	Create(ctx context.Context, token *entity.SetupToken) error

	// FindByHash retrieves a token by the hash of its raw value.
	FindByHash(ctx context.Context, tokenHash string) (*entity.SetupToken, error)

	// FindUnconsumedByMerchantID lists tokens of a merchant that have not been redeemed.
	FindUnconsumedByMerchantID(ctx context.Context, merchantID uuid.UUID) ([]*entity.SetupToken, error)

	// Consume sets consumed_at to now only where it is still null and the token has not expired.
	// It reports false when the conditional update matched no row.
	Consume(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	// DeleteStale removes tokens consumed or expired before cutoff and returns how many were removed.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

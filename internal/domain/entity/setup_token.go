package entity

import (
	"time"

	"github.com/google/uuid"
)

// SetupToken is a single-use ticket that lets a newly provisioned merchant set their password.
// Only the SHA-256 hash of the raw token is persisted.
type SetupToken struct {
	TokenHash  string
	MerchantID uuid.UUID
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time // nil until redeemed; never reset once set.
}

// IsExpired reports whether the token is past its validity window at now.
func (t *SetupToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsConsumed reports whether the token has already been redeemed.
func (t *SetupToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}

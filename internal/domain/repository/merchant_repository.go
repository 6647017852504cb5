// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"onboarding/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for merchant persistence.
var (
	// ErrMerchantNotFound is returned when a merchant is not found.
	ErrMerchantNotFound = errors.New("merchant not found")
	// ErrMerchantEmailExists is returned when the email unique index rejects an insert.
	ErrMerchantEmailExists = errors.New("merchant email already exists")
	// ErrVersionConflict is returned when a conditional update finds a different version.
	ErrVersionConflict = errors.New("merchant version conflict")
)

// MerchantRepository defines the persistence contract for merchants.
type MerchantRepository interface {
	// Create inserts a new merchant. Email must already be normalized.
	Create(ctx context.Context, merchant *entity.Merchant) error

	// FindByID retrieves a merchant by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Merchant, error)

	// ExistsByEmail reports whether a merchant already uses the normalized email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// UpdateIfVersion persists the merchant's mutable fields only if the stored version
	// still equals merchant.Version. On success merchant.Version is incremented.
	UpdateIfVersion(ctx context.Context, merchant *entity.Merchant) error
}

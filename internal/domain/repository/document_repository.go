package repository

import (
	"context"

	"onboarding/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrDocumentNotFound is returned when a document is not found.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentRepository defines the persistence contract for verification documents.
type DocumentRepository interface {
	// Create persists a new document.
	Create(ctx context.Context, document *entity.Document) error

	// FindByID retrieves a document by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)

	// ListByMerchantID lists every document of a merchant ordered by upload time.
	ListByMerchantID(ctx context.Context, merchantID uuid.UUID) ([]*entity.Document, error)

	// UpdateReview persists the status and reviewer fields of a document.
	UpdateReview(ctx context.Context, document *entity.Document) error
}

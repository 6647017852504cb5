package usecase

import (
	"context"

	"onboarding/internal/domain/entity"

	"github.com/google/uuid"
)

// SubmitDocumentInput registers a new document for review.
type SubmitDocumentInput struct {
	MerchantID   uuid.UUID `json:"-"`
	DocumentType string    `json:"documentType" validate:"required,max=100"`
	FileURL      string    `json:"fileUrl,omitempty" validate:"omitempty,url"`
}

// ReviewDocumentInput records an administrator's decision on a document.
type ReviewDocumentInput struct {
	DocumentID uuid.UUID                   `json:"-"`
	Status     entity.DocumentReviewStatus `json:"status" validate:"required,oneof=complete rejected"`
	Reviewer   string                      `json:"-" validate:"required"`
}

// DocumentChangeOutput reports the document and the merchant statuses it produced.
type DocumentChangeOutput struct {
	Document           *entity.Document          `json:"document"`
	DocumentStatus     entity.DocumentStatus     `json:"documentStatus"`
	VerificationStatus entity.VerificationStatus `json:"verificationStatus"`
}

// DocumentUsecase manages verification documents and keeps the merchant aggregate current.
type DocumentUsecase interface {
	SubmitDocument(ctx context.Context, input *SubmitDocumentInput) (*DocumentChangeOutput, error)
	ReviewDocument(ctx context.Context, input *ReviewDocumentInput) (*DocumentChangeOutput, error)
	ListDocuments(ctx context.Context, merchantID uuid.UUID) ([]*entity.Document, error)
}

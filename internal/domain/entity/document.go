package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentReviewStatus is the review state of a single verification document.
type DocumentReviewStatus string

const (
	DocumentPendingReview DocumentReviewStatus = "pending_review"
	DocumentComplete      DocumentReviewStatus = "complete"
	DocumentRejected      DocumentReviewStatus = "rejected"
)

// IsValid checks if the DocumentReviewStatus is a valid value.
func (s DocumentReviewStatus) IsValid() bool {
	switch s {
	case DocumentPendingReview, DocumentComplete, DocumentRejected:
		return true
	default:
		return false
	}
}

// Document is a piece of verification evidence owned by exactly one merchant.
type Document struct {
	ID           uuid.UUID            `json:"id"`
	MerchantID   uuid.UUID            `json:"merchantId"`
	DocumentType string               `json:"documentType"`
	FileURL      string               `json:"fileUrl,omitempty"`
	Status       DocumentReviewStatus `json:"status"`
	UploadedAt   time.Time            `json:"uploadedAt"`
	ReviewedBy   string               `json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time           `json:"reviewedAt,omitempty"`
}

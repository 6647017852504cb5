package entity

import "github.com/google/uuid"

// BulkAction is the administrative transition applied across a batch of merchants.
type BulkAction string

const (
	BulkActionVerify BulkAction = "verify"
	BulkActionReject BulkAction = "reject"
)

// IsValid checks if the BulkAction is a valid value.
func (a BulkAction) IsValid() bool {
	return a == BulkActionVerify || a == BulkActionReject
}

// Target returns the verification status the action moves a merchant to.
func (a BulkAction) Target() VerificationStatus {
	if a == BulkActionVerify {
		return VerificationVerified
	}

	return VerificationRejected
}

// BulkOutcome tags the result of a bulk action for one merchant.
type BulkOutcome string

const (
	OutcomeApplied                  BulkOutcome = "applied"
	OutcomeSkippedAlreadyInState    BulkOutcome = "skipped-already-in-state"
	OutcomeSkippedNotFound          BulkOutcome = "skipped-not-found"
	OutcomeSkippedInvalidTransition BulkOutcome = "skipped-invalid-transition"
)

// BulkActionRequest is a transient batch transition request.
type BulkActionRequest struct {
	MerchantIDs []uuid.UUID
	Action      BulkAction
	Actor       string
}

// BulkItemResult is the outcome for a single merchant of a bulk request.
type BulkItemResult struct {
	MerchantID uuid.UUID          `json:"merchantId"`
	Outcome    BulkOutcome        `json:"outcome"`
	Status     VerificationStatus `json:"status,omitempty"` // Status after processing; empty when not found.
}

// BulkActionResult aggregates the per-merchant outcomes of a bulk request.
type BulkActionResult struct {
	ModifiedCount int              `json:"modifiedCount"`
	Results       []BulkItemResult `json:"results"`
}

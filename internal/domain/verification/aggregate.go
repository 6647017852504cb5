package verification

import "onboarding/internal/domain/entity"

// Aggregate derives a merchant's document status from the statuses of all its documents.
// Rejection dominates, then pending review; a non-empty all-complete set is complete.
func Aggregate(statuses []entity.DocumentReviewStatus) entity.DocumentStatus {
	if len(statuses) == 0 {
		return entity.DocumentStatusNone
	}

	pending := false
	for _, status := range statuses {
		switch status {
		case entity.DocumentRejected:
			return entity.DocumentStatusRejected
		case entity.DocumentPendingReview:
			pending = true
		}
	}

	if pending {
		return entity.DocumentStatusPendingReview
	}

	return entity.DocumentStatusComplete
}

// TargetFor returns the verification status an aggregate change should drive the merchant to.
// ok is false when the aggregate requests no transition from current.
//
//   - rejected: walk to rejected from wherever the merchant is.
//   - pending_review: return to pending for review, unless already pending.
//   - complete: verify, but only a merchant that is currently pending.
//   - none: nothing.
func TargetFor(current entity.VerificationStatus, aggregate entity.DocumentStatus) (target entity.VerificationStatus, ok bool) {
	switch aggregate {
	case entity.DocumentStatusRejected:
		return entity.VerificationRejected, current != entity.VerificationRejected
	case entity.DocumentStatusPendingReview:
		return entity.VerificationPending, current != entity.VerificationPending
	case entity.DocumentStatusComplete:
		return entity.VerificationVerified, current == entity.VerificationPending
	default:
		return "", false
	}
}

// Reopens reports whether a pending_review aggregate sends the merchant back to pending.
// Only a fresh upload or a move into pending_review does; reviewing one document while
// others are still outstanding leaves an administrator's decision alone.
func Reopens(previous, aggregate entity.DocumentStatus, uploaded bool) bool {
	if aggregate != entity.DocumentStatusPendingReview {
		return true
	}

	return uploaded || previous != aggregate
}

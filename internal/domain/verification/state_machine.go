// Package verification holds the pure rules governing a merchant's trust status:
// the transition table and the document status aggregation.
package verification

import (
	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
)

// transitions lists every legal non-self transition.
//
//nolint:gochecknoglobals
var transitions = map[entity.VerificationStatus][]entity.VerificationStatus{
	entity.VerificationUnverified: {entity.VerificationPending},
	entity.VerificationPending:    {entity.VerificationVerified, entity.VerificationRejected},
	entity.VerificationRejected:   {entity.VerificationPending},
	entity.VerificationVerified:   {entity.VerificationPending},
}

// CanTransition reports whether from -> to is a legal, non-self transition.
func CanTransition(from, to entity.VerificationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Transition checks a requested transition.
// It returns changed=false with no error for a self-transition, changed=true for a legal
// transition, and an InvalidStateTransition error otherwise.
func Transition(from, to entity.VerificationStatus) (changed bool, err error) {
	if !from.IsValid() || !to.IsValid() {
		return false, domainerrors.NewInvalidTransitionError(from.String(), to.String())
	}
	if from == to {
		return false, nil
	}
	if !CanTransition(from, to) {
		return false, domainerrors.NewInvalidTransitionError(from.String(), to.String())
	}

	return true, nil
}

// Path returns the shortest sequence of legal steps leading from -> to, excluding from itself.
// An empty path means from == to.
func Path(from, to entity.VerificationStatus) ([]entity.VerificationStatus, error) {
	if !from.IsValid() || !to.IsValid() {
		return nil, domainerrors.NewInvalidTransitionError(from.String(), to.String())
	}
	if from == to {
		return nil, nil
	}

	prev := map[entity.VerificationStatus]entity.VerificationStatus{from: from}
	queue := []entity.VerificationStatus{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range transitions[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == to {
				return unwind(prev, from, to), nil
			}
			queue = append(queue, next)
		}
	}

	return nil, domainerrors.NewInvalidTransitionError(from.String(), to.String())
}

func unwind(prev map[entity.VerificationStatus]entity.VerificationStatus, from, to entity.VerificationStatus) []entity.VerificationStatus {
	var path []entity.VerificationStatus
	for step := to; step != from; step = prev[step] {
		path = append([]entity.VerificationStatus{step}, path...)
	}

	return path
}

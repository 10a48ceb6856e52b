package rental

import (
	"time"

	"github.com/rental/backend/internal/domain/shared"
)

// transitions lists the legal manual moves from each effective status.
// LATE never appears as a target: it is inferred from ACTIVE plus a past end date.
var transitions = map[RentalStatus][]RentalStatus{
	StatusDraft:     {StatusActive, StatusCancelled},
	StatusScheduled: {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusScheduled, StatusCancelled},
	StatusLate:      {StatusCompleted, StatusScheduled, StatusCancelled},
	StatusCompleted: {StatusActive},
	StatusCancelled: nil,
}

// CanTransition checks whether from → to is a legal manual transition
func CanTransition(from, to RentalStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns InvalidTransitionError for illegal moves
func ValidateTransition(from, to RentalStatus) error {
	if !to.IsValid() {
		return shared.NewValidationError("unknown rental status: " + string(to)).WithDetail("status", string(to))
	}
	if !CanTransition(from, to) {
		return shared.NewInvalidTransitionError(from.String(), to.String())
	}
	return nil
}

// AllowedTransitions returns the targets reachable from an effective status
func AllowedTransitions(from RentalStatus) []RentalStatus {
	out := make([]RentalStatus, len(transitions[from]))
	copy(out, transitions[from])
	return out
}

// EffectiveStatus resolves the status shown to callers: an ACTIVE rental whose
// end date has passed reads as LATE.
func EffectiveStatus(stored RentalStatus, endDate, now time.Time) RentalStatus {
	if stored == StatusActive && IsPastDue(endDate, now) {
		return StatusLate
	}
	return stored
}

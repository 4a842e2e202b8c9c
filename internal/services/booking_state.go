package services

import (
	"github.com/koskita/backend/internal/models"
)

// allowedTransitions is the booking status graph. Statuses only move
// forward; terminal statuses have no outgoing edges.
var allowedTransitions = map[string][]string{
	models.BookingStatusUnpaid: {
		models.BookingStatusDepositPaid,
		models.BookingStatusConfirmed,
		models.BookingStatusExpired,
		models.BookingStatusCancelled,
	},
	models.BookingStatusDepositPaid: {
		models.BookingStatusConfirmed,
		models.BookingStatusCheckedIn,
	},
	models.BookingStatusConfirmed: {
		models.BookingStatusCheckedIn,
	},
	models.BookingStatusCheckedIn: {
		models.BookingStatusCompleted,
	},
}

// CanTransition reports whether a booking may move from one status to
// another. Same-status "transitions" are allowed as no-ops so retried
// events stay idempotent.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentEvent describes a payment outcome being applied to a booking.
type PaymentEvent struct {
	PaymentStatus string // SUCCESS, FAILED or EXPIRED
	PaymentType   string // DEPOSIT or FULL
	// OtherPendingExists is true when the booking still has another
	// PENDING payment; a failed payment must not expire the booking
	// while a sibling attempt can still settle.
	OtherPendingExists bool
}

// NextBookingStatus computes the booking status implied by a payment event.
// The second return value is false when the event changes nothing, which
// covers duplicate webhook deliveries and events against terminal bookings.
func NextBookingStatus(current string, ev PaymentEvent) (string, bool) {
	if models.IsTerminalBookingStatus(current) {
		return current, false
	}

	switch ev.PaymentStatus {
	case models.PaymentStatusSuccess:
		target := models.BookingStatusConfirmed
		if ev.PaymentType == models.PaymentTypeDeposit {
			target = models.BookingStatusDepositPaid
		}
		if current == target || !CanTransition(current, target) {
			return current, false
		}
		return target, true

	case models.PaymentStatusFailed, models.PaymentStatusExpired:
		if ev.OtherPendingExists {
			return current, false
		}
		if current != models.BookingStatusUnpaid {
			return current, false
		}
		return models.BookingStatusExpired, true
	}

	return current, false
}

package models

import (
	"time"
)

// Booking statuses. EXPIRED, CANCELLED and COMPLETED are terminal.
const (
	BookingStatusUnpaid      = "UNPAID"
	BookingStatusDepositPaid = "DEPOSIT_PAID"
	BookingStatusConfirmed   = "CONFIRMED"
	BookingStatusCheckedIn   = "CHECKED_IN"
	BookingStatusCompleted   = "COMPLETED"
	BookingStatusExpired     = "EXPIRED"
	BookingStatusCancelled   = "CANCELLED"
)

const (
	LeaseDaily     = "DAILY"
	LeaseWeekly    = "WEEKLY"
	LeaseMonthly   = "MONTHLY"
	LeaseQuarterly = "QUARTERLY"
	LeaseYearly    = "YEARLY"
)

type Booking struct {
	ID            string     `json:"id" db:"id"`
	BookingCode   string     `json:"bookingCode" db:"booking_code"`
	CustomerID    string     `json:"customerId" db:"customer_id"`
	PropertyID    string     `json:"propertyId" db:"property_id"`
	RoomID        string     `json:"roomId" db:"room_id"`
	LeaseType     string     `json:"leaseType" db:"lease_type"`
	CheckInDate   time.Time  `json:"checkInDate" db:"check_in_date"`
	CheckOutDate  *time.Time `json:"checkOutDate,omitempty" db:"check_out_date"`
	Status        string     `json:"status" db:"status"`
	PaymentStatus string     `json:"paymentStatus" db:"payment_status"`
	TotalAmount   int64      `json:"totalAmount" db:"total_amount"` // rupiah
	DepositAmount *int64     `json:"depositAmount,omitempty" db:"deposit_amount"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsTerminal reports whether no further status transition is allowed.
func (b *Booking) IsTerminal() bool {
	return IsTerminalBookingStatus(b.Status)
}

func IsTerminalBookingStatus(status string) bool {
	switch status {
	case BookingStatusExpired, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// BookingExtension records a lease extension request. The original booking
// dates are never mutated; each extension carries its own payment.
type BookingExtension struct {
	ID           string    `json:"id" db:"id"`
	BookingID    string    `json:"bookingId" db:"booking_id"`
	PaymentID    string    `json:"paymentId" db:"payment_id"`
	LeaseType    string    `json:"leaseType" db:"lease_type"`
	NewCheckOut  time.Time `json:"newCheckOut" db:"new_check_out"`
	Amount       int64     `json:"amount" db:"amount"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

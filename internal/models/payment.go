package models

import (
	"time"
)

// Payment statuses mirror the gateway lifecycle: a PENDING payment either
// settles (SUCCESS), is denied/cancelled (FAILED) or runs out the clock
// (EXPIRED).
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
	PaymentStatusExpired = "EXPIRED"
)

const (
	PaymentTypeDeposit = "DEPOSIT"
	PaymentTypeFull    = "FULL"
)

type Payment struct {
	ID              string     `json:"id" db:"id"`
	BookingID       string     `json:"bookingId" db:"booking_id"`
	MidtransOrderID string     `json:"midtransOrderId" db:"midtrans_order_id"`
	Amount          int64      `json:"amount" db:"amount"` // rupiah
	Status          string     `json:"status" db:"status"`
	PaymentType     string     `json:"paymentType" db:"payment_type"`
	PaymentMethod   string     `json:"paymentMethod" db:"payment_method"`
	TransactionID   string     `json:"transactionId" db:"transaction_id"`
	PaymentToken    string     `json:"paymentToken" db:"payment_token"`
	RedirectURL     string     `json:"redirectUrl" db:"redirect_url"`
	ExpiryTime      *time.Time `json:"expiryTime,omitempty" db:"expiry_time"`
	PaidAt          *time.Time `json:"paidAt,omitempty" db:"paid_at"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusExpired:
		return true
	}
	return false
}

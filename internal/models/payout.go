package models

import (
	"time"
)

const (
	PayoutStatusPending   = "PENDING"
	PayoutStatusApproved  = "APPROVED"
	PayoutStatusRejected  = "REJECTED"
	PayoutStatusCompleted = "COMPLETED"
)

// Payout is an AdminKos withdrawal request against the ledger balance.
type Payout struct {
	ID            string     `json:"id" db:"id"`
	OwnerID       string     `json:"ownerId" db:"owner_id"`
	BankCode      string     `json:"bankCode" db:"bank_code"`
	AccountNumber string     `json:"accountNumber" db:"account_number"`
	AccountName   string     `json:"accountName" db:"account_name"`
	Amount        int64      `json:"amount" db:"amount"` // rupiah
	Status        string     `json:"status" db:"status"`
	Note          string     `json:"note" db:"note"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty" db:"decided_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

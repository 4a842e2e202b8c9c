package models

import (
	"time"
)

const (
	LedgerAccountIncome  = "INCOME"
	LedgerAccountExpense = "EXPENSE"
	LedgerAccountOther   = "OTHER"
)

const (
	LedgerEntryIn  = "IN"
	LedgerEntryOut = "OUT"
)

// DefaultIncomeAccountName is the account settled room payments land on.
const DefaultIncomeAccountName = "Pembayaran Kos"

type LedgerAccount struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"ownerId" db:"owner_id"` // AdminKos user id
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"` // INCOME, EXPENSE, OTHER
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// LedgerEntry rows are append-only: corrections are written as compensating
// adjustment entries, never as updates to historical amounts.
type LedgerEntry struct {
	ID          string    `json:"id" db:"id"`
	AccountID   string    `json:"accountId" db:"account_id"`
	OwnerID     string    `json:"ownerId" db:"owner_id"`
	PaymentID   *string   `json:"paymentId,omitempty" db:"payment_id"`
	PayoutID    *string   `json:"payoutId,omitempty" db:"payout_id"`
	AdjustsID   *string   `json:"adjustsId,omitempty" db:"adjusts_id"` // entry being compensated
	Direction   string    `json:"direction" db:"direction"`            // IN or OUT
	Amount      int64     `json:"amount" db:"amount"`                  // rupiah, always positive
	Description string    `json:"description" db:"description"`
	EntryDate   time.Time `json:"entryDate" db:"entry_date"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/koskita/backend/internal/clock"
	"github.com/koskita/backend/internal/models"
)

// LedgerService maintains the per-AdminKos chart of accounts and the
// append-only IN/OUT entries payouts are validated against.
type LedgerService struct {
	db        *sql.DB
	clock     clock.Clock
	validator *ValidationHelper
}

func NewLedgerService(db *sql.DB, clk clock.Clock) *LedgerService {
	return &LedgerService{db: db, clock: clk, validator: NewValidationHelper()}
}

// EnsureDefaultAccountTx returns the owner's "Pembayaran Kos" income
// account, creating it on first use.
func (s *LedgerService) EnsureDefaultAccountTx(tx *sql.Tx, ownerID string) (string, error) {
	var accountID string
	err := tx.QueryRow(`
		SELECT id FROM ledger_accounts
		WHERE owner_id = $1 AND name = $2`,
		ownerID, models.DefaultIncomeAccountName).Scan(&accountID)
	if err == nil {
		return accountID, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	accountID = uuid.New().String()
	_, err = tx.Exec(`
		INSERT INTO ledger_accounts (id, owner_id, name, category, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		accountID, ownerID, models.DefaultIncomeAccountName, models.LedgerAccountIncome, s.clock.Now())
	if err != nil {
		return "", err
	}
	return accountID, nil
}

// RecordPaymentInTx mirrors a settled payment into the owner's ledger.
// Idempotent per payment: a second call for the same payment id is a no-op.
func (s *LedgerService) RecordPaymentInTx(tx *sql.Tx, ownerID string, payment *models.Payment, description string) error {
	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE payment_id = $1)`,
		payment.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("[LEDGER] Entry for payment %s already recorded, skipping", payment.ID)
		return nil
	}

	accountID, err := s.EnsureDefaultAccountTx(tx, ownerID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	_, err = tx.Exec(`
		INSERT INTO ledger_entries
		(id, account_id, owner_id, payment_id, direction, amount, description, entry_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), accountID, ownerID, payment.ID,
		models.LedgerEntryIn, payment.Amount, description, now, now)
	return err
}

// RecordPayoutOutTx writes the OUT entry for an approved payout after
// re-checking the balance under the same transaction.
func (s *LedgerService) RecordPayoutOutTx(tx *sql.Tx, payout *models.Payout) error {
	balance, err := s.balanceTx(tx, payout.OwnerID)
	if err != nil {
		return err
	}
	if balance < payout.Amount {
		return models.ErrSaldoTidakCukup
	}

	accountID, err := s.EnsureDefaultAccountTx(tx, payout.OwnerID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	_, err = tx.Exec(`
		INSERT INTO ledger_entries
		(id, account_id, owner_id, payout_id, direction, amount, description, entry_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), accountID, payout.OwnerID, payout.ID,
		models.LedgerEntryOut, payout.Amount, "Payout "+payout.BankCode+" "+payout.AccountNumber, now, now)
	return err
}

// Balance computes sum(IN) - sum(OUT) over the owner's entries.
func (s *LedgerService) Balance(ctx context.Context, ownerID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'IN' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE owner_id = $1`, ownerID).Scan(&balance)
	return balance, err
}

func (s *LedgerService) balanceTx(tx *sql.Tx, ownerID string) (int64, error) {
	var balance int64
	err := tx.QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN direction = 'IN' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE owner_id = $1`, ownerID).Scan(&balance)
	return balance, err
}

// CreateAdjustment writes a compensating entry against an existing one.
// Historical amounts are never edited in place.
func (s *LedgerService) CreateAdjustment(ctx context.Context, ownerID, entryID, description string) (*models.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var original models.LedgerEntry
	err = tx.QueryRow(`
		SELECT id, account_id, direction, amount
		FROM ledger_entries
		WHERE id = $1 AND owner_id = $2`,
		entryID, ownerID).Scan(&original.ID, &original.AccountID, &original.Direction, &original.Amount)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	reversed := models.LedgerEntryOut
	if original.Direction == models.LedgerEntryOut {
		reversed = models.LedgerEntryIn
	}

	now := s.clock.Now()
	adj := &models.LedgerEntry{
		ID:          uuid.New().String(),
		AccountID:   original.AccountID,
		OwnerID:     ownerID,
		AdjustsID:   &original.ID,
		Direction:   reversed,
		Amount:      original.Amount,
		Description: description,
		EntryDate:   now,
		CreatedAt:   now,
	}
	_, err = tx.Exec(`
		INSERT INTO ledger_entries
		(id, account_id, owner_id, adjusts_id, direction, amount, description, entry_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		adj.ID, adj.AccountID, adj.OwnerID, adj.AdjustsID, adj.Direction,
		adj.Amount, adj.Description, adj.EntryDate, adj.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return adj, nil
}

// BackfillMissingEntries finds settled payments without a ledger entry and
// writes the missing IN entries. Returns the payment ids it repaired.
func (s *LedgerService) BackfillMissingEntries(ctx context.Context) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT p.id, p.amount, pr.owner_id, b.booking_code
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		JOIN properties pr ON pr.id = b.property_id
		WHERE p.status = 'SUCCESS'
		  AND NOT EXISTS (SELECT 1 FROM ledger_entries le WHERE le.payment_id = p.id)`)
	if err != nil {
		return nil, err
	}

	type missing struct {
		payment models.Payment
		ownerID string
		code    string
	}
	var missed []missing
	for rows.Next() {
		var m missing
		if err := rows.Scan(&m.payment.ID, &m.payment.Amount, &m.ownerID, &m.code); err != nil {
			rows.Close()
			return nil, err
		}
		missed = append(missed, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	repaired := []string{}
	for _, m := range missed {
		if err := s.RecordPaymentInTx(tx, m.ownerID, &m.payment, "Pembayaran booking "+m.code+" (backfill)"); err != nil {
			return nil, err
		}
		repaired = append(repaired, m.payment.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return repaired, nil
}

// HTTP handlers

// GetBalance returns the caller's payout-eligible ledger balance.
// @Summary Get ledger balance
// @Tags ledger
// @Produce json
// @Success 200 {object} object{ownerId=string,balance=int64}
// @Router /ledger/balance [get]
func (s *LedgerService) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := r.Context().Value("userID").(string)
	if !ok || ownerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := s.Balance(r.Context(), ownerID)
	if err != nil {
		log.Printf("[LEDGER] Failed to compute balance for owner %s: %v", ownerID, err)
		SendErrorResponse(w, "Failed to compute balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ownerId": ownerID,
		"balance": balance,
	})
}

// ListEntries returns the caller's ledger entries, newest first.
// @Summary List ledger entries
// @Tags ledger
// @Produce json
// @Success 200 {object} object{entries=[]models.LedgerEntry,count=int}
// @Router /ledger/entries [get]
func (s *LedgerService) ListEntries(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := r.Context().Value("userID").(string)
	if !ok || ownerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, account_id, owner_id, payment_id, payout_id, adjusts_id,
		       direction, amount, description, entry_date, created_at
		FROM ledger_entries
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT 100`, ownerID)
	if err != nil {
		log.Printf("[LEDGER] Failed to list entries for owner %s: %v", ownerID, err)
		SendErrorResponse(w, "Failed to fetch entries", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.OwnerID, &e.PaymentID, &e.PayoutID,
			&e.AdjustsID, &e.Direction, &e.Amount, &e.Description, &e.EntryDate, &e.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch entries", http.StatusInternalServerError, nil)
			return
		}
		entries = append(entries, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// PostAdjustment writes a compensating entry for an earlier one.
// @Summary Adjust a ledger entry
// @Tags ledger
// @Accept json
// @Produce json
// @Router /ledger/entries/{entryId}/adjust [post]
func (s *LedgerService) PostAdjustment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := r.Context().Value("userID").(string)
	if !ok || ownerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		EntryID     string `json:"entryId" validate:"required"`
		Description string `json:"description" validate:"required,max=200"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	adj, err := s.CreateAdjustment(r.Context(), ownerID, req.EntryID, req.Description)
	if err != nil {
		log.Printf("[LEDGER] Adjustment failed for entry %s: %v", req.EntryID, err)
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(adj)
}

// Backfill repairs ledger entries missing for settled payments.
// @Summary Backfill missing ledger entries
// @Tags ledger
// @Produce json
// @Router /ledger/backfill [post]
func (s *LedgerService) Backfill(w http.ResponseWriter, r *http.Request) {
	repaired, err := s.BackfillMissingEntries(r.Context())
	if err != nil {
		log.Printf("[LEDGER] Backfill failed: %v", err)
		SendErrorResponse(w, "Backfill failed", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"repairedPaymentIds": repaired,
		"count":              len(repaired),
	})
}

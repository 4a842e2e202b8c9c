package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/koskita/backend/internal/clock"
	"github.com/koskita/backend/internal/models"
)

// PayoutService handles owner withdrawal requests. Money only leaves the
// ledger at approval time, under the same transaction that re-checks the
// balance, so two racing approvals cannot overdraw an owner.
type PayoutService struct {
	db        *sql.DB
	clock     clock.Clock
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewPayoutService(db *sql.DB, clk clock.Clock, ledger *LedgerService) *PayoutService {
	return &PayoutService{db: db, clock: clk, ledger: ledger, validator: NewValidationHelper()}
}

type PayoutRequest struct {
	BankCode      string `json:"bankCode" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required,numeric,min=6,max=20"`
	AccountName   string `json:"accountName" validate:"required,min=3,max=100"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
}

// RequestPayout files a withdrawal request for the caller's balance.
// @Summary Request a payout
// @Tags payouts
// @Accept json
// @Produce json
// @Param payout body PayoutRequest true "Payout data"
// @Success 201 {object} models.Payout
// @Failure 400 {object} ErrorResponse
// @Router /payouts [post]
func (s *PayoutService) RequestPayout(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := r.Context().Value("userID").(string)
	if !ok || ownerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req PayoutRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if !ValidBankCode(req.BankCode) {
		SendErrorResponse(w, "Kode bank tidak dikenal", http.StatusBadRequest, nil)
		return
	}

	// Advisory check; the binding one happens at approval.
	balance, err := s.ledger.Balance(r.Context(), ownerID)
	if err != nil {
		SendErrorResponse(w, "Failed to compute balance", http.StatusInternalServerError, nil)
		return
	}
	if balance < req.Amount {
		SendDomainError(w, models.ErrSaldoTidakCukup)
		return
	}

	now := s.clock.Now()
	payout := &models.Payout{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		Amount:        req.Amount,
		Status:        models.PayoutStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err = s.db.ExecContext(r.Context(), `
		INSERT INTO payouts
		(id, owner_id, bank_code, account_number, account_name, amount, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $9)`,
		payout.ID, payout.OwnerID, payout.BankCode, payout.AccountNumber,
		payout.AccountName, payout.Amount, payout.Status, payout.CreatedAt, payout.UpdatedAt)
	if err != nil {
		log.Printf("[PAYOUT] Failed to create payout for owner %s: %v", ownerID, err)
		SendErrorResponse(w, "Failed to create payout", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PAYOUT] Owner %s requested payout %s of %d", ownerID, payout.ID, payout.Amount)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payout)
}

// ListPayouts returns the caller's payouts; superadmins see all of them.
// @Summary List payouts
// @Tags payouts
// @Produce json
// @Success 200 {object} object{payouts=[]models.Payout,count=int}
// @Router /payouts [get]
func (s *PayoutService) ListPayouts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := r.Context().Value("userID").(string)
	if !ok || ownerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	role, _ := r.Context().Value("userRole").(string)

	query := `
		SELECT id, owner_id, bank_code, account_number, account_name, amount,
		       status, note, decided_at, created_at, updated_at
		FROM payouts WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 100`
	args := []any{ownerID}
	if role == models.RoleSuperadmin {
		query = `
			SELECT id, owner_id, bank_code, account_number, account_name, amount,
			       status, note, decided_at, created_at, updated_at
			FROM payouts ORDER BY created_at DESC LIMIT 100`
		args = nil
	}

	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch payouts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	payouts := []models.Payout{}
	for rows.Next() {
		var p models.Payout
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.BankCode, &p.AccountNumber, &p.AccountName,
			&p.Amount, &p.Status, &p.Note, &p.DecidedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch payouts", http.StatusInternalServerError, nil)
			return
		}
		payouts = append(payouts, p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"payouts": payouts,
		"count":   len(payouts),
	})
}

// ApprovePayout approves a pending payout and writes its ledger OUT entry.
// @Summary Approve a payout
// @Tags payouts
// @Produce json
// @Param payoutId path string true "Payout ID"
// @Success 200 {object} models.Payout
// @Failure 409 {object} ErrorResponse
// @Router /payouts/{payoutId}/approve [post]
func (s *PayoutService) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, models.PayoutStatusApproved)
}

// RejectPayout rejects a pending payout; no ledger entry is written.
// @Summary Reject a payout
// @Tags payouts
// @Produce json
// @Param payoutId path string true "Payout ID"
// @Router /payouts/{payoutId}/reject [post]
func (s *PayoutService) RejectPayout(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, models.PayoutStatusRejected)
}

func (s *PayoutService) decide(w http.ResponseWriter, r *http.Request, target string) {
	payoutID := chi.URLParam(r, "payoutId")

	var note struct {
		Note string `json:"note" validate:"max=200"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSONBody(w, r, &note); err != nil {
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
		if err := s.validator.ValidateStruct(&note); err != nil {
			SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
	}

	now := s.clock.Now()
	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		SendErrorResponse(w, "Failed to update payout", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	payout := &models.Payout{}
	err = tx.QueryRow(`
		SELECT id, owner_id, bank_code, account_number, account_name, amount, status
		FROM payouts WHERE id = $1
		FOR UPDATE`, payoutID).Scan(
		&payout.ID, &payout.OwnerID, &payout.BankCode, &payout.AccountNumber,
		&payout.AccountName, &payout.Amount, &payout.Status)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Payout tidak ditemukan", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch payout", http.StatusInternalServerError, nil)
		return
	}

	if payout.Status != models.PayoutStatusPending {
		SendDomainError(w, models.ErrPayoutAlreadyDecided)
		return
	}

	if target == models.PayoutStatusApproved {
		if err := s.ledger.RecordPayoutOutTx(tx, payout); err != nil {
			log.Printf("[PAYOUT] Approval of %s failed: %v", payoutID, err)
			SendDomainError(w, err)
			return
		}
	}

	_, err = tx.Exec(`
		UPDATE payouts SET status = $2, note = $3, decided_at = $4, updated_at = $4
		WHERE id = $1`, payoutID, target, note.Note, now)
	if err != nil {
		SendErrorResponse(w, "Failed to update payout", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to update payout", http.StatusInternalServerError, nil)
		return
	}

	payout.Status = target
	payout.Note = note.Note
	payout.DecidedAt = &now
	payout.UpdatedAt = now

	log.Printf("[PAYOUT] Payout %s -> %s", payoutID, target)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payout)
}

// CompletePayout marks an approved payout as transferred.
// @Summary Complete a payout
// @Tags payouts
// @Produce json
// @Param payoutId path string true "Payout ID"
// @Router /payouts/{payoutId}/complete [post]
func (s *PayoutService) CompletePayout(w http.ResponseWriter, r *http.Request) {
	payoutID := chi.URLParam(r, "payoutId")
	now := s.clock.Now()

	res, err := s.db.ExecContext(r.Context(), `
		UPDATE payouts SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4`,
		payoutID, models.PayoutStatusCompleted, now, models.PayoutStatusApproved)
	if err != nil {
		SendErrorResponse(w, "Failed to update payout", http.StatusInternalServerError, nil)
		return
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		SendErrorResponse(w, "Payout bukan dalam status APPROVED", http.StatusConflict, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": payoutID, "status": models.PayoutStatusCompleted})
}

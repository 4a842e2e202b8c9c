package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/koskita/backend/internal/clock"
	"github.com/koskita/backend/internal/gateway"
	"github.com/koskita/backend/internal/models"
	"github.com/spf13/viper"
)

// PaymentService creates gateway payments and reconciles gateway outcomes
// into payment, booking, room and ledger state. Reconcile is the single
// write path used by the webhook, the refresh endpoint and the client
// confirm fallback.
type PaymentService struct {
	db        *sql.DB
	gw        *gateway.Client
	clock     clock.Clock
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewPaymentService(db *sql.DB, gw *gateway.Client, clk clock.Clock, ledger *LedgerService) *PaymentService {
	return &PaymentService{
		db:        db,
		gw:        gw,
		clock:     clk,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// CreateForBooking opens a Snap checkout session and stores the PENDING
// payment. A still-pending payment over the same amount is returned as-is
// so a double click does not open two sessions. Extension payments are
// excluded from the reuse lookup: they cover a different thing even when
// the amount matches.
func (s *PaymentService) CreateForBooking(ctx context.Context, booking *models.Booking, amount int64, paymentType, itemName string) (*models.Payment, error) {
	now := s.clock.Now()

	existing := &models.Payment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, booking_id, midtrans_order_id, amount, status, payment_type,
		       payment_method, transaction_id, payment_token, redirect_url,
		       expiry_time, paid_at, created_at, updated_at
		FROM payments
		WHERE booking_id = $1 AND status = 'PENDING' AND amount = $2
		  AND (expiry_time IS NULL OR expiry_time > $3)
		  AND NOT EXISTS (
			SELECT 1 FROM booking_extensions e WHERE e.payment_id = payments.id
		  )
		ORDER BY created_at DESC
		LIMIT 1`,
		booking.ID, amount, now).Scan(
		&existing.ID, &existing.BookingID, &existing.MidtransOrderID, &existing.Amount,
		&existing.Status, &existing.PaymentType, &existing.PaymentMethod,
		&existing.TransactionID, &existing.PaymentToken, &existing.RedirectURL,
		&existing.ExpiryTime, &existing.PaidAt, &existing.CreatedAt, &existing.UpdatedAt)
	if err == nil {
		log.Printf("[PAYMENT] Reusing pending payment %s for booking %s", existing.MidtransOrderID, booking.ID)
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	return s.createGatewayPayment(ctx, booking, amount, paymentType, itemName, now)
}

// CreateForExtension opens a checkout session for a lease extension. Each
// extension record carries its own payment, so there is no reuse lookup.
func (s *PaymentService) CreateForExtension(ctx context.Context, booking *models.Booking, amount int64, itemName string) (*models.Payment, error) {
	return s.createGatewayPayment(ctx, booking, amount, models.PaymentTypeFull, itemName, s.clock.Now())
}

func (s *PaymentService) createGatewayPayment(ctx context.Context, booking *models.Booking, amount int64, paymentType, itemName string, now time.Time) (*models.Payment, error) {
	var customerName, customerEmail string
	err := s.db.QueryRowContext(ctx, `
		SELECT full_name, email FROM users WHERE id = $1`,
		booking.CustomerID).Scan(&customerName, &customerEmail)
	if err != nil {
		return nil, err
	}

	expiryMinutes := viper.GetInt("midtrans.expiry_minutes")
	if expiryMinutes <= 0 {
		expiryMinutes = 60
	}

	orderID := fmt.Sprintf("%s-%s", booking.BookingCode, uuid.New().String()[:8])
	snap, err := s.gw.CreateSnapTransaction(ctx, gateway.SnapRequest{
		OrderID:       orderID,
		GrossAmount:   amount,
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		ItemName:      itemName,
		ExpiryMinutes: expiryMinutes,
	})
	if err != nil {
		return nil, err
	}

	expiry := now.Add(time.Duration(expiryMinutes) * time.Minute)
	payment := &models.Payment{
		ID:              uuid.New().String(),
		BookingID:       booking.ID,
		MidtransOrderID: orderID,
		Amount:          amount,
		Status:          models.PaymentStatusPending,
		PaymentType:     paymentType,
		PaymentToken:    snap.Token,
		RedirectURL:     snap.RedirectURL,
		ExpiryTime:      &expiry,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments
		(id, booking_id, midtrans_order_id, amount, status, payment_type,
		 payment_method, transaction_id, payment_token, redirect_url,
		 expiry_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '', '', $7, $8, $9, $10, $11)`,
		payment.ID, payment.BookingID, payment.MidtransOrderID, payment.Amount,
		payment.Status, payment.PaymentType, payment.PaymentToken,
		payment.RedirectURL, payment.ExpiryTime, payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		return nil, err
	}

	log.Printf("[PAYMENT] Created payment %s (%s) for booking %s", payment.ID, orderID, booking.ID)
	return payment, nil
}

// Reconcile applies the gateway-reported state of an order. Unknown order
// ids and repeated terminal statuses are idempotent no-ops; a payment's
// first terminal status wins.
func (s *PaymentService) Reconcile(ctx context.Context, status *gateway.TransactionStatus) error {
	now := s.clock.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	payment := &models.Payment{}
	var bookingStatus, roomID, ownerID, bookingCode string
	err = tx.QueryRow(`
		SELECT p.id, p.booking_id, p.amount, p.status, p.payment_type,
		       b.status, b.room_id, b.booking_code, pr.owner_id
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		JOIN properties pr ON pr.id = b.property_id
		WHERE p.midtrans_order_id = $1
		FOR UPDATE OF p, b`,
		status.OrderID).Scan(
		&payment.ID, &payment.BookingID, &payment.Amount, &payment.Status,
		&payment.PaymentType, &bookingStatus, &roomID, &bookingCode, &ownerID)
	if err == sql.ErrNoRows {
		log.Printf("[PAYMENT] Unknown order_id %s, ignoring", status.OrderID)
		return nil
	}
	if err != nil {
		return err
	}

	if status.GrossAmount != "" {
		gross, err := gateway.GrossAmountRupiah(status.GrossAmount)
		if err != nil {
			log.Printf("[PAYMENT] Unparseable gross_amount for %s: %v", status.OrderID, err)
			return nil
		}
		if gross != payment.Amount {
			log.Printf("[PAYMENT] Amount mismatch for %s: gateway %d, recorded %d, ignoring",
				status.OrderID, gross, payment.Amount)
			return nil
		}
	}

	newStatus := mapGatewayStatus(status.TransactionStatus, status.FraudStatus)
	if newStatus == "" || newStatus == models.PaymentStatusPending {
		return nil
	}

	if models.IsTerminalPaymentStatus(payment.Status) {
		if payment.Status != newStatus {
			log.Printf("[PAYMENT] Order %s already %s, ignoring late %s",
				status.OrderID, payment.Status, status.TransactionStatus)
		}
		return nil
	}

	var paidAt *time.Time
	if newStatus == models.PaymentStatusSuccess {
		paidAt = &now
	}
	_, err = tx.Exec(`
		UPDATE payments
		SET status = $2, transaction_id = $3, payment_method = $4,
		    paid_at = $5, updated_at = $6
		WHERE id = $1`,
		payment.ID, newStatus, status.TransactionID, status.PaymentType, paidAt, now)
	if err != nil {
		return err
	}
	payment.Status = newStatus

	var otherPending bool
	err = tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM payments
			WHERE booking_id = $1 AND id <> $2 AND status = 'PENDING'
		)`, payment.BookingID, payment.ID).Scan(&otherPending)
	if err != nil {
		return err
	}

	next, changed := NextBookingStatus(bookingStatus, PaymentEvent{
		PaymentStatus:      newStatus,
		PaymentType:        payment.PaymentType,
		OtherPendingExists: otherPending,
	})
	if changed {
		_, err = tx.Exec(`
			UPDATE bookings SET status = $2, payment_status = $3, updated_at = $4
			WHERE id = $1`,
			payment.BookingID, next, newStatus, now)
		if err != nil {
			return err
		}
		if next == models.BookingStatusExpired {
			if err := releaseRoomTx(tx, roomID, now); err != nil {
				return err
			}
		}
		log.Printf("[PAYMENT] Booking %s moved %s -> %s via order %s",
			payment.BookingID, bookingStatus, next, status.OrderID)
	}

	if newStatus == models.PaymentStatusSuccess {
		if err := s.applyExtensionTx(tx, payment, now); err != nil {
			return err
		}
		if err := s.ledger.RecordPaymentInTx(tx, ownerID, payment, "Pembayaran booking "+bookingCode); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// applyExtensionTx advances the booking's check-out date when the settled
// payment backs an extension record. The date only ever moves forward.
func (s *PaymentService) applyExtensionTx(tx *sql.Tx, payment *models.Payment, now time.Time) error {
	var newCheckOut time.Time
	err := tx.QueryRow(`
		SELECT new_check_out FROM booking_extensions WHERE payment_id = $1`,
		payment.ID).Scan(&newCheckOut)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		UPDATE bookings
		SET check_out_date = $2, updated_at = $3
		WHERE id = $1 AND (check_out_date IS NULL OR check_out_date < $2)`,
		payment.BookingID, newCheckOut, now)
	if err != nil {
		return err
	}
	log.Printf("[PAYMENT] Extended booking %s check-out to %s via payment %s",
		payment.BookingID, newCheckOut.Format("2006-01-02"), payment.ID)
	return nil
}

func mapGatewayStatus(transactionStatus, fraudStatus string) string {
	if gateway.IsSuccess(transactionStatus, fraudStatus) {
		return models.PaymentStatusSuccess
	}
	switch transactionStatus {
	case gateway.StatusDeny, gateway.StatusCancel:
		return models.PaymentStatusFailed
	case gateway.StatusExpire:
		return models.PaymentStatusExpired
	case gateway.StatusPending:
		return models.PaymentStatusPending
	}
	return ""
}

// HTTP handlers

type CreatePaymentRequest struct {
	BookingID   string `json:"bookingId" validate:"required,uuid4"`
	PaymentType string `json:"paymentType" validate:"required,oneof=DEPOSIT FULL"`
}

// CreatePayment opens a checkout session for a booking.
// @Summary Create a payment
// @Tags payments
// @Accept json
// @Produce json
// @Param payment body CreatePaymentRequest true "Payment data"
// @Success 201 {object} models.Payment
// @Failure 400 {object} ErrorResponse
// @Router /payments [post]
func (s *PaymentService) CreatePayment(w http.ResponseWriter, r *http.Request) {
	customerID, ok := r.Context().Value("userID").(string)
	if !ok || customerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreatePaymentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	booking := &models.Booking{}
	row := s.db.QueryRow(`
		SELECT id, booking_code, customer_id, property_id, room_id, lease_type,
		       check_in_date, check_out_date, status, payment_status,
		       total_amount, deposit_amount, created_at, updated_at
		FROM bookings WHERE id = $1`, req.BookingID)
	if err := scanBooking(row, booking); err == sql.ErrNoRows {
		SendDomainError(w, models.ErrBookingNotFound)
		return
	} else if err != nil {
		SendErrorResponse(w, "Failed to fetch booking", http.StatusInternalServerError, nil)
		return
	}

	if booking.CustomerID != customerID {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}
	if booking.IsTerminal() {
		SendDomainError(w, models.ErrBookingTerminal)
		return
	}

	amount := booking.TotalAmount
	if req.PaymentType == models.PaymentTypeDeposit {
		if booking.DepositAmount == nil {
			SendErrorResponse(w, "Booking tidak memiliki opsi deposit", http.StatusBadRequest, nil)
			return
		}
		amount = *booking.DepositAmount
	}

	payment, err := s.CreateForBooking(r.Context(), booking, amount, req.PaymentType,
		"Sewa kos "+booking.BookingCode)
	if err != nil {
		log.Printf("[PAYMENT] Failed to create payment for booking %s: %v", req.BookingID, err)
		SendErrorResponse(w, "Failed to create payment", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payment)
}

// GetStatus returns the stored payment state for an order id.
// @Summary Get payment status
// @Tags payments
// @Produce json
// @Param orderId query string true "Midtrans order ID"
// @Success 200 {object} models.Payment
// @Failure 404 {object} ErrorResponse
// @Router /payments/status [get]
func (s *PaymentService) GetStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		SendErrorResponse(w, "orderId is required", http.StatusBadRequest, nil)
		return
	}

	payment, err := s.fetchByOrderID(orderID)
	if err == sql.ErrNoRows {
		SendDomainError(w, models.ErrPaymentNotFound)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch payment", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payment)
}

// RefreshStatus re-queries the gateway and reconciles before answering.
// Used when a webhook was missed.
// @Summary Refresh payment status from the gateway
// @Tags payments
// @Produce json
// @Param orderId query string true "Midtrans order ID"
// @Success 200 {object} models.Payment
// @Router /payments/refresh-status [get]
func (s *PaymentService) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		SendErrorResponse(w, "orderId is required", http.StatusBadRequest, nil)
		return
	}

	gwStatus, err := s.gw.GetTransactionStatus(r.Context(), orderID)
	if err != nil {
		log.Printf("[PAYMENT] Gateway status query failed for %s: %v", orderID, err)
		SendErrorResponse(w, "Failed to query gateway", http.StatusBadGateway, nil)
		return
	}

	if err := s.Reconcile(r.Context(), gwStatus); err != nil {
		log.Printf("[PAYMENT] Reconcile failed for %s: %v", orderID, err)
		SendErrorResponse(w, "Failed to reconcile payment", http.StatusInternalServerError, nil)
		return
	}

	payment, err := s.fetchByOrderID(orderID)
	if err == sql.ErrNoRows {
		SendDomainError(w, models.ErrPaymentNotFound)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch payment", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payment)
}

type ConfirmClientRequest struct {
	OrderID           string `json:"orderId" validate:"required"`
	TransactionStatus string `json:"transactionStatus" validate:"required"`
	PaymentType       string `json:"paymentType"`
	TransactionTime   string `json:"transactionTime"`
	TransactionID     string `json:"transactionId"`
}

// ConfirmClient is the browser-side fallback after Snap redirects back.
// The client-reported status is advisory only: the gateway is re-queried
// and its answer is what gets applied.
// @Summary Client payment confirmation fallback
// @Tags payments
// @Accept json
// @Produce json
// @Router /payments/confirm-client [post]
func (s *PaymentService) ConfirmClient(w http.ResponseWriter, r *http.Request) {
	customerID, ok := r.Context().Value("userID").(string)
	if !ok || customerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req ConfirmClientRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	gwStatus, err := s.gw.GetTransactionStatus(r.Context(), req.OrderID)
	if err != nil {
		log.Printf("[PAYMENT] Client confirm: gateway query failed for %s (client said %s): %v",
			req.OrderID, req.TransactionStatus, err)
		SendErrorResponse(w, "Failed to verify with gateway", http.StatusBadGateway, nil)
		return
	}

	if err := s.Reconcile(r.Context(), gwStatus); err != nil {
		log.Printf("[PAYMENT] Client confirm reconcile failed for %s: %v", req.OrderID, err)
		SendErrorResponse(w, "Failed to confirm payment", http.StatusInternalServerError, nil)
		return
	}

	payment, err := s.fetchByOrderID(req.OrderID)
	if err == sql.ErrNoRows {
		SendDomainError(w, models.ErrPaymentNotFound)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch payment", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payment)
}

func (s *PaymentService) fetchByOrderID(orderID string) (*models.Payment, error) {
	p := &models.Payment{}
	err := s.db.QueryRow(`
		SELECT id, booking_id, midtrans_order_id, amount, status, payment_type,
		       payment_method, transaction_id, payment_token, redirect_url,
		       expiry_time, paid_at, created_at, updated_at
		FROM payments
		WHERE midtrans_order_id = $1`, orderID).Scan(
		&p.ID, &p.BookingID, &p.MidtransOrderID, &p.Amount, &p.Status,
		&p.PaymentType, &p.PaymentMethod, &p.TransactionID, &p.PaymentToken,
		&p.RedirectURL, &p.ExpiryTime, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/koskita/backend/internal/clock"
	"github.com/koskita/backend/internal/gateway"
	"github.com/koskita/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPaymentService_CreateForBooking_ReusesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(time.Hour)
	service := NewPaymentService(db, nil, clock.NewFixed(now), NewLedgerService(db, clock.NewFixed(now)))

	booking := &models.Booking{
		ID:          "booking-1",
		BookingCode: "KOS-2026-000001",
		CustomerID:  "customer-1",
	}

	// A live pending payment over the same amount short-circuits before any
	// gateway call; the nil gateway client proves no Snap session is opened.
	// Extension payments never match the reuse lookup.
	mock.ExpectQuery(`(?s)SELECT id, booking_id, midtrans_order_id.*NOT EXISTS.*booking_extensions`).
		WithArgs("booking-1", int64(450_000), now).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "booking_id", "midtrans_order_id", "amount", "status", "payment_type",
			"payment_method", "transaction_id", "payment_token", "redirect_url",
			"expiry_time", "paid_at", "created_at", "updated_at"}).
			AddRow("pay-1", "booking-1", "KOS-2026-000001-abcd1234", int64(450_000),
				"PENDING", "DEPOSIT", "", "", "snap-token-1", "https://snap/redirect",
				expiry, nil, now, now))

	payment, err := service.CreateForBooking(context.Background(), booking, 450_000,
		models.PaymentTypeDeposit, "Sewa kos KOS-2026-000001")
	assert.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
	assert.Equal(t, "snap-token-1", payment.PaymentToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_CreateForExtension_AlwaysNewSession(t *testing.T) {
	snap := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"token":        "snap-ext-1",
			"redirect_url": "https://snap/ext",
		})
	}))
	defer snap.Close()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	gw := gateway.NewClientWithConfig("test-key", snap.URL, "")
	service := NewPaymentService(db, gw, clock.NewFixed(now), NewLedgerService(db, clock.NewFixed(now)))

	booking := &models.Booking{
		ID:          "booking-1",
		BookingCode: "KOS-2026-000001",
		CustomerID:  "customer-1",
	}

	// No reuse lookup: a pending original-term payment of the same amount
	// must not hijack the extension's checkout session.
	mock.ExpectQuery("SELECT full_name, email FROM users").
		WithArgs("customer-1").
		WillReturnRows(sqlmock.NewRows([]string{"full_name", "email"}).
			AddRow("Budi Santoso", "budi@example.com"))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment, err := service.CreateForExtension(context.Background(), booking, 1_500_000,
		"Perpanjangan KOS-2026-000001")
	assert.NoError(t, err)
	assert.Equal(t, "snap-ext-1", payment.PaymentToken)
	assert.Equal(t, models.PaymentTypeFull, payment.PaymentType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_GetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := NewPaymentService(db, nil, clock.NewFixed(now), NewLedgerService(db, clock.NewFixed(now)))

	t.Run("known order", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, booking_id, midtrans_order_id").
			WithArgs("KOS-2026-000001-abcd1234").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "booking_id", "midtrans_order_id", "amount", "status", "payment_type",
				"payment_method", "transaction_id", "payment_token", "redirect_url",
				"expiry_time", "paid_at", "created_at", "updated_at"}).
				AddRow("pay-1", "booking-1", "KOS-2026-000001-abcd1234", int64(450_000),
					"SUCCESS", "DEPOSIT", "bank_transfer", "tx-1", "", "",
					nil, now, now, now))

		r := httptest.NewRequest("GET", "/api/v1/payments/status?orderId=KOS-2026-000001-abcd1234", nil)
		w := httptest.NewRecorder()

		service.GetStatus(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"SUCCESS"`)
	})

	t.Run("unknown order", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, booking_id, midtrans_order_id").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		r := httptest.NewRequest("GET", "/api/v1/payments/status?orderId=missing", nil)
		w := httptest.NewRecorder()

		service.GetStatus(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing orderId", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/payments/status", nil)
		w := httptest.NewRecorder()

		service.GetStatus(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMapGatewayStatus(t *testing.T) {
	tests := []struct {
		transactionStatus string
		fraudStatus       string
		want              string
	}{
		{gateway.StatusSettlement, "", models.PaymentStatusSuccess},
		{gateway.StatusCapture, "accept", models.PaymentStatusSuccess},
		{gateway.StatusCapture, "challenge", ""},
		{gateway.StatusDeny, "", models.PaymentStatusFailed},
		{gateway.StatusCancel, "", models.PaymentStatusFailed},
		{gateway.StatusExpire, "", models.PaymentStatusExpired},
		{gateway.StatusPending, "", models.PaymentStatusPending},
		{gateway.StatusRefund, "", ""},
		{"unheard_of", "", ""},
	}

	for _, tt := range tests {
		got := mapGatewayStatus(tt.transactionStatus, tt.fraudStatus)
		assert.Equal(t, tt.want, got, tt.transactionStatus)
	}
}

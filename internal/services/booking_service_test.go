package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/koskita/backend/internal/clock"
	"github.com/koskita/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

const (
	testPropertyID = "7d3f9c4e-8a2b-4f1e-9c6d-1a2b3c4d5e6f"
	testRoomID     = "9e5a7b3c-1d2e-4f5a-8b9c-0d1e2f3a4b5c"
)

func bookingRequest(t *testing.T, method, target string, body any, userID string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	return r.WithContext(context.WithValue(r.Context(), "userID", userID))
}

func withBookingParam(r *http.Request, bookingID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("bookingId", bookingID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func newBookingFixture(t *testing.T, now time.Time) (*BookingService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFixed(now)
	ledger := NewLedgerService(db, clk)
	payments := NewPaymentService(db, nil, clk, ledger)
	return NewBookingService(db, clk, payments), mock
}

func TestBookingService_CreateBooking(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("creates an unpaid booking and takes the room", func(t *testing.T) {
		service, mock := newBookingFixture(t, now)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, property_id, is_available, daily_price, monthly_price").
			WithArgs(testRoomID, testPropertyID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "property_id", "is_available", "daily_price", "monthly_price"}).
				AddRow(testRoomID, testPropertyID, true, int64(150_000), int64(1_500_000)))
		mock.ExpectQuery("SELECT nextval").
			WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(42)))
		mock.ExpectExec("INSERT INTO bookings").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE rooms SET is_available = FALSE").
			WithArgs(testRoomID, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE properties").
			WithArgs(testPropertyID, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		r := bookingRequest(t, "POST", "/api/v1/bookings", CreateBookingRequest{
			PropertyID:  testPropertyID,
			RoomID:      testRoomID,
			LeaseType:   "MONTHLY",
			CheckInDate: "2026-04-01",
			PaymentType: "DEPOSIT",
		}, "customer-1")
		w := httptest.NewRecorder()

		service.CreateBooking(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var booking models.Booking
		json.Unmarshal(w.Body.Bytes(), &booking)
		assert.Equal(t, "KOS-2026-000042", booking.BookingCode)
		assert.Equal(t, models.BookingStatusUnpaid, booking.Status)
		assert.Equal(t, int64(1_500_000), booking.TotalAmount)
		assert.NotNil(t, booking.DepositAmount)
		assert.Equal(t, int64(450_000), *booking.DepositAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("room already taken", func(t *testing.T) {
		service, mock := newBookingFixture(t, now)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, property_id, is_available, daily_price, monthly_price").
			WithArgs(testRoomID, testPropertyID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "property_id", "is_available", "daily_price", "monthly_price"}).
				AddRow(testRoomID, testPropertyID, false, int64(150_000), int64(1_500_000)))
		mock.ExpectRollback()

		r := bookingRequest(t, "POST", "/api/v1/bookings", CreateBookingRequest{
			PropertyID:  testPropertyID,
			RoomID:      testRoomID,
			LeaseType:   "MONTHLY",
			CheckInDate: "2026-04-01",
			PaymentType: "FULL",
		}, "customer-1")
		w := httptest.NewRecorder()

		service.CreateBooking(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "kamar tidak tersedia")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("check-in date in the past", func(t *testing.T) {
		service, _ := newBookingFixture(t, now)

		r := bookingRequest(t, "POST", "/api/v1/bookings", CreateBookingRequest{
			PropertyID:  testPropertyID,
			RoomID:      testRoomID,
			LeaseType:   "MONTHLY",
			CheckInDate: "2026-01-01",
			PaymentType: "FULL",
		}, "customer-1")
		w := httptest.NewRecorder()

		service.CreateBooking(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown lease type fails validation", func(t *testing.T) {
		service, _ := newBookingFixture(t, now)

		r := bookingRequest(t, "POST", "/api/v1/bookings", CreateBookingRequest{
			PropertyID:  testPropertyID,
			RoomID:      testRoomID,
			LeaseType:   "HOURLY",
			CheckInDate: "2026-04-01",
			PaymentType: "FULL",
		}, "customer-1")
		w := httptest.NewRecorder()

		service.CreateBooking(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBookingService_ManualTransitions(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	bookingRows := func(status string) *sqlmock.Rows {
		checkOut := now.AddDate(0, 1, 0)
		return sqlmock.NewRows([]string{
			"id", "booking_code", "customer_id", "property_id", "room_id", "lease_type",
			"check_in_date", "check_out_date", "status", "payment_status",
			"total_amount", "deposit_amount", "created_at", "updated_at"}).
			AddRow("booking-1", "KOS-2026-000001", "customer-1", testPropertyID, testRoomID,
				"MONTHLY", now, checkOut, status, "SUCCESS",
				int64(1_500_000), nil, now, now)
	}

	t.Run("check-in from confirmed", func(t *testing.T) {
		service, mock := newBookingFixture(t, now)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, room_id FROM bookings").
			WithArgs("booking-1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "room_id"}).
				AddRow("CONFIRMED", testRoomID))
		mock.ExpectExec("UPDATE bookings SET status").
			WithArgs("booking-1", "CHECKED_IN", now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT id, booking_code, customer_id").
			WithArgs("booking-1").
			WillReturnRows(bookingRows("CHECKED_IN"))

		r := withBookingParam(bookingRequest(t, "POST", "/api/v1/bookings/booking-1/check-in", nil, "owner-1"), "booking-1")
		w := httptest.NewRecorder()

		service.CheckIn(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completion releases the room", func(t *testing.T) {
		service, mock := newBookingFixture(t, now)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, room_id FROM bookings").
			WithArgs("booking-1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "room_id"}).
				AddRow("CHECKED_IN", testRoomID))
		mock.ExpectExec("UPDATE bookings SET status").
			WithArgs("booking-1", "COMPLETED", now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE rooms").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE properties").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT id, booking_code, customer_id").
			WithArgs("booking-1").
			WillReturnRows(bookingRows("COMPLETED"))

		r := withBookingParam(bookingRequest(t, "POST", "/api/v1/bookings/booking-1/complete", nil, "owner-1"), "booking-1")
		w := httptest.NewRecorder()

		service.Complete(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancel is rejected after confirmation", func(t *testing.T) {
		service, mock := newBookingFixture(t, now)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, room_id FROM bookings").
			WithArgs("booking-1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "room_id"}).
				AddRow("CONFIRMED", testRoomID))
		mock.ExpectRollback()

		r := withBookingParam(bookingRequest(t, "POST", "/api/v1/bookings/booking-1/cancel", nil, "customer-1"), "booking-1")
		w := httptest.NewRecorder()

		service.Cancel(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal booking rejects any move", func(t *testing.T) {
		service, mock := newBookingFixture(t, now)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, room_id FROM bookings").
			WithArgs("booking-1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "room_id"}).
				AddRow("EXPIRED", testRoomID))
		mock.ExpectRollback()

		r := withBookingParam(bookingRequest(t, "POST", "/api/v1/bookings/booking-1/check-in", nil, "owner-1"), "booking-1")
		w := httptest.NewRecorder()

		service.CheckIn(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retried transition answers with current state", func(t *testing.T) {
		service, mock := newBookingFixture(t, now)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, room_id FROM bookings").
			WithArgs("booking-1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "room_id"}).
				AddRow("CHECKED_IN", testRoomID))
		mock.ExpectQuery("SELECT id, booking_code, customer_id").
			WithArgs("booking-1").
			WillReturnRows(bookingRows("CHECKED_IN"))
		mock.ExpectRollback()

		r := withBookingParam(bookingRequest(t, "POST", "/api/v1/bookings/booking-1/check-in", nil, "owner-1"), "booking-1")
		w := httptest.NewRecorder()

		service.CheckIn(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGenBookingCode(t *testing.T) {
	assert.Equal(t, "KOS-2026-000042",
		GenBookingCode(42, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "KOS-2027-123456",
		GenBookingCode(123456, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLeaseAmount(t *testing.T) {
	room := &models.Room{DailyPrice: 150_000, MonthlyPrice: 1_500_000}

	assert.Equal(t, int64(150_000), leaseAmount(room, models.LeaseDaily))
	assert.Equal(t, int64(1_050_000), leaseAmount(room, models.LeaseWeekly))
	assert.Equal(t, int64(1_500_000), leaseAmount(room, models.LeaseMonthly))
	assert.Equal(t, int64(4_500_000), leaseAmount(room, models.LeaseQuarterly))
	assert.Equal(t, int64(18_000_000), leaseAmount(room, models.LeaseYearly))
}

func TestLeaseCheckOut(t *testing.T) {
	checkIn := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), leaseCheckOut(checkIn, models.LeaseDaily))
	assert.Equal(t, time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC), leaseCheckOut(checkIn, models.LeaseWeekly))
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), leaseCheckOut(checkIn, models.LeaseMonthly))
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), leaseCheckOut(checkIn, models.LeaseQuarterly))
	assert.Equal(t, time.Date(2027, 4, 1, 0, 0, 0, 0, time.UTC), leaseCheckOut(checkIn, models.LeaseYearly))
}

func TestDepositAmount(t *testing.T) {
	assert.Equal(t, int64(450_000), depositAmount(1_500_000))
	assert.Equal(t, int64(30_000), depositAmount(100_000))
	assert.Equal(t, int64(0), depositAmount(1)) // rounds down
}

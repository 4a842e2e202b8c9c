package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/koskita/backend/internal/clock"
	"github.com/koskita/backend/internal/models"
)

// BookingService owns the booking lifecycle: creation with a room lock,
// manual status moves, cancellation and lease extensions.
type BookingService struct {
	db        *sql.DB
	clock     clock.Clock
	payments  *PaymentService
	validator *ValidationHelper
}

func NewBookingService(db *sql.DB, clk clock.Clock, payments *PaymentService) *BookingService {
	return &BookingService{
		db:        db,
		clock:     clk,
		payments:  payments,
		validator: NewValidationHelper(),
	}
}

type CreateBookingRequest struct {
	PropertyID  string `json:"propertyId" validate:"required,uuid4"`
	RoomID      string `json:"roomId" validate:"required,uuid4"`
	LeaseType   string `json:"leaseType" validate:"required,oneof=DAILY WEEKLY MONTHLY QUARTERLY YEARLY"`
	CheckInDate string `json:"checkInDate" validate:"required"` // YYYY-MM-DD
	PaymentType string `json:"paymentType" validate:"required,oneof=DEPOSIT FULL"`
}

// CreateBooking creates an UNPAID booking and locks the room. The room row
// is taken FOR UPDATE so two concurrent requests cannot both pass the
// availability check.
// @Summary Create a booking
// @Tags bookings
// @Accept json
// @Produce json
// @Param booking body CreateBookingRequest true "Booking data"
// @Success 201 {object} models.Booking
// @Failure 400 {object} ErrorResponse
// @Router /bookings [post]
func (s *BookingService) CreateBooking(w http.ResponseWriter, r *http.Request) {
	customerID, ok := r.Context().Value("userID").(string)
	if !ok || customerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateBookingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	checkIn, err := time.Parse("2006-01-02", req.CheckInDate)
	if err != nil {
		SendErrorResponse(w, "Invalid checkInDate, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	now := s.clock.Now()
	if checkIn.Before(now.Truncate(24 * time.Hour)) {
		SendErrorResponse(w, "Tanggal check-in sudah lewat", http.StatusBadRequest, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[BOOKING] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	// Lock the room row before checking availability.
	var room models.Room
	err = tx.QueryRow(`
		SELECT id, property_id, is_available, daily_price, monthly_price
		FROM rooms
		WHERE id = $1 AND property_id = $2
		FOR UPDATE`,
		req.RoomID, req.PropertyID).Scan(
		&room.ID, &room.PropertyID, &room.IsAvailable, &room.DailyPrice, &room.MonthlyPrice)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Kamar tidak ditemukan", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[BOOKING] Failed to lock room %s: %v", req.RoomID, err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}

	if !room.IsAvailable {
		SendDomainError(w, models.ErrRoomUnavailable)
		return
	}

	totalAmount := leaseAmount(&room, req.LeaseType)
	checkOut := leaseCheckOut(checkIn, req.LeaseType)

	var seq int64
	if err := tx.QueryRow(`SELECT nextval('booking_code_seq')`).Scan(&seq); err != nil {
		log.Printf("[BOOKING] Failed to fetch booking sequence: %v", err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}

	booking := models.Booking{
		ID:            uuid.New().String(),
		BookingCode:   GenBookingCode(seq, now),
		CustomerID:    customerID,
		PropertyID:    req.PropertyID,
		RoomID:        req.RoomID,
		LeaseType:     req.LeaseType,
		CheckInDate:   checkIn,
		CheckOutDate:  &checkOut,
		Status:        models.BookingStatusUnpaid,
		PaymentStatus: models.PaymentStatusPending,
		TotalAmount:   totalAmount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.PaymentType == models.PaymentTypeDeposit {
		deposit := depositAmount(totalAmount)
		booking.DepositAmount = &deposit
	}

	_, err = tx.Exec(`
		INSERT INTO bookings
		(id, booking_code, customer_id, property_id, room_id, lease_type,
		 check_in_date, check_out_date, status, payment_status, total_amount,
		 deposit_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		booking.ID, booking.BookingCode, booking.CustomerID, booking.PropertyID,
		booking.RoomID, booking.LeaseType, booking.CheckInDate, booking.CheckOutDate,
		booking.Status, booking.PaymentStatus, booking.TotalAmount,
		booking.DepositAmount, booking.CreatedAt, booking.UpdatedAt)
	if err != nil {
		log.Printf("[BOOKING] Failed to insert booking: %v", err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}

	_, err = tx.Exec(`
		UPDATE rooms SET is_available = FALSE, updated_at = $2 WHERE id = $1`,
		room.ID, now)
	if err != nil {
		log.Printf("[BOOKING] Failed to lock room availability: %v", err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}

	_, err = tx.Exec(`
		UPDATE properties
		SET available_rooms = available_rooms - 1, updated_at = $2
		WHERE id = $1 AND available_rooms > 0`,
		room.PropertyID, now)
	if err != nil {
		log.Printf("[BOOKING] Failed to update property availability: %v", err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[BOOKING] Failed to commit booking: %v", err)
		SendErrorResponse(w, "Failed to create booking", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BOOKING] Created booking %s (%s) for customer %s", booking.ID, booking.BookingCode, customerID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

// GetBooking returns one booking owned by the caller.
// @Summary Get booking by id
// @Tags bookings
// @Produce json
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 404 {object} ErrorResponse
// @Router /bookings/{bookingId} [get]
func (s *BookingService) GetBooking(w http.ResponseWriter, r *http.Request) {
	customerID, _ := r.Context().Value("userID").(string)
	bookingID := chi.URLParam(r, "bookingId")

	booking, err := s.fetchBooking(bookingID)
	if err == sql.ErrNoRows {
		SendDomainError(w, models.ErrBookingNotFound)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch booking", http.StatusInternalServerError, nil)
		return
	}
	if booking.CustomerID != customerID && !isOwnerOrAdmin(r) {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// ListBookings returns the caller's bookings, newest first.
// @Summary List own bookings
// @Tags bookings
// @Produce json
// @Success 200 {object} object{bookings=[]models.Booking,count=int}
// @Router /bookings [get]
func (s *BookingService) ListBookings(w http.ResponseWriter, r *http.Request) {
	customerID, ok := r.Context().Value("userID").(string)
	if !ok || customerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, booking_code, customer_id, property_id, room_id, lease_type,
		       check_in_date, check_out_date, status, payment_status,
		       total_amount, deposit_amount, created_at, updated_at
		FROM bookings
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT 50`, customerID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch bookings", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			SendErrorResponse(w, "Failed to fetch bookings", http.StatusInternalServerError, nil)
			return
		}
		bookings = append(bookings, b)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// CheckIn moves a paid booking to CHECKED_IN.
// @Summary Check a tenant in
// @Tags bookings
// @Produce json
// @Param bookingId path string true "Booking ID"
// @Router /bookings/{bookingId}/check-in [post]
func (s *BookingService) CheckIn(w http.ResponseWriter, r *http.Request) {
	s.manualTransition(w, r, models.BookingStatusCheckedIn, false)
}

// Complete moves a CHECKED_IN booking to COMPLETED and releases the room.
// @Summary Complete a booking
// @Tags bookings
// @Produce json
// @Param bookingId path string true "Booking ID"
// @Router /bookings/{bookingId}/complete [post]
func (s *BookingService) Complete(w http.ResponseWriter, r *http.Request) {
	s.manualTransition(w, r, models.BookingStatusCompleted, true)
}

// Cancel cancels an UNPAID booking and releases the room.
// @Summary Cancel a booking
// @Tags bookings
// @Produce json
// @Param bookingId path string true "Booking ID"
// @Router /bookings/{bookingId}/cancel [post]
func (s *BookingService) Cancel(w http.ResponseWriter, r *http.Request) {
	s.manualTransition(w, r, models.BookingStatusCancelled, true)
}

func (s *BookingService) manualTransition(w http.ResponseWriter, r *http.Request, target string, releaseRoom bool) {
	bookingID := chi.URLParam(r, "bookingId")
	now := s.clock.Now()

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to update booking", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var current, roomID string
	err = tx.QueryRow(`
		SELECT status, room_id FROM bookings WHERE id = $1 FOR UPDATE`,
		bookingID).Scan(&current, &roomID)
	if err == sql.ErrNoRows {
		SendDomainError(w, models.ErrBookingNotFound)
		return
	}
	if err != nil {
		log.Printf("[BOOKING] Failed to lock booking %s: %v", bookingID, err)
		SendErrorResponse(w, "Failed to update booking", http.StatusInternalServerError, nil)
		return
	}

	if current == target {
		// Retried action; answer with current state.
		booking, err := s.fetchBooking(bookingID)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch booking", http.StatusInternalServerError, nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(booking)
		return
	}

	if models.IsTerminalBookingStatus(current) {
		SendDomainError(w, models.ErrBookingTerminal)
		return
	}
	if !CanTransition(current, target) {
		log.Printf("[BOOKING] Rejected transition %s -> %s for booking %s", current, target, bookingID)
		SendDomainError(w, models.ErrInvalidTransition)
		return
	}

	_, err = tx.Exec(`
		UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`,
		bookingID, target, now)
	if err != nil {
		SendErrorResponse(w, "Failed to update booking", http.StatusInternalServerError, nil)
		return
	}

	if releaseRoom {
		if err := releaseRoomTx(tx, roomID, now); err != nil {
			log.Printf("[BOOKING] Failed to release room %s: %v", roomID, err)
			SendErrorResponse(w, "Failed to update booking", http.StatusInternalServerError, nil)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to update booking", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BOOKING] Booking %s moved %s -> %s", bookingID, current, target)
	booking, err := s.fetchBooking(bookingID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch booking", http.StatusInternalServerError, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

type ExtendBookingRequest struct {
	LeaseType string `json:"leaseType" validate:"required,oneof=DAILY WEEKLY MONTHLY QUARTERLY YEARLY"`
}

// Extend creates an extension record plus a fresh payment for it. The
// original booking dates stay untouched until the extension settles.
// @Summary Extend a lease
// @Tags bookings
// @Accept json
// @Produce json
// @Param bookingId path string true "Booking ID"
// @Router /bookings/{bookingId}/extend [post]
func (s *BookingService) Extend(w http.ResponseWriter, r *http.Request) {
	customerID, ok := r.Context().Value("userID").(string)
	if !ok || customerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	bookingID := chi.URLParam(r, "bookingId")

	var req ExtendBookingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	booking, err := s.fetchBooking(bookingID)
	if err == sql.ErrNoRows {
		SendDomainError(w, models.ErrBookingNotFound)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch booking", http.StatusInternalServerError, nil)
		return
	}
	if booking.CustomerID != customerID {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}
	if booking.Status != models.BookingStatusCheckedIn && booking.Status != models.BookingStatusConfirmed {
		SendDomainError(w, models.ErrInvalidTransition)
		return
	}

	var room models.Room
	err = s.db.QueryRow(`
		SELECT id, property_id, daily_price, monthly_price FROM rooms WHERE id = $1`,
		booking.RoomID).Scan(&room.ID, &room.PropertyID, &room.DailyPrice, &room.MonthlyPrice)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch room", http.StatusInternalServerError, nil)
		return
	}

	amount := leaseAmount(&room, req.LeaseType)
	base := s.clock.Now()
	if booking.CheckOutDate != nil && booking.CheckOutDate.After(base) {
		base = *booking.CheckOutDate
	}
	newCheckOut := leaseCheckOut(base, req.LeaseType)

	payment, err := s.payments.CreateForExtension(r.Context(), booking, amount,
		fmt.Sprintf("Perpanjangan %s", booking.BookingCode))
	if err != nil {
		log.Printf("[BOOKING] Failed to create extension payment for %s: %v", bookingID, err)
		SendErrorResponse(w, "Failed to create extension payment", http.StatusInternalServerError, nil)
		return
	}

	now := s.clock.Now()
	ext := models.BookingExtension{
		ID:          uuid.New().String(),
		BookingID:   booking.ID,
		PaymentID:   payment.ID,
		LeaseType:   req.LeaseType,
		NewCheckOut: newCheckOut,
		Amount:      amount,
		CreatedAt:   now,
	}
	_, err = s.db.Exec(`
		INSERT INTO booking_extensions
		(id, booking_id, payment_id, lease_type, new_check_out, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ext.ID, ext.BookingID, ext.PaymentID, ext.LeaseType, ext.NewCheckOut, ext.Amount, ext.CreatedAt)
	if err != nil {
		log.Printf("[BOOKING] Failed to store extension for %s: %v", bookingID, err)
		SendErrorResponse(w, "Failed to store extension", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"extension": ext,
		"payment":   payment,
	})
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner, b *models.Booking) error {
	return row.Scan(
		&b.ID, &b.BookingCode, &b.CustomerID, &b.PropertyID, &b.RoomID,
		&b.LeaseType, &b.CheckInDate, &b.CheckOutDate, &b.Status,
		&b.PaymentStatus, &b.TotalAmount, &b.DepositAmount,
		&b.CreatedAt, &b.UpdatedAt)
}

func (s *BookingService) fetchBooking(bookingID string) (*models.Booking, error) {
	b := &models.Booking{}
	row := s.db.QueryRow(`
		SELECT id, booking_code, customer_id, property_id, room_id, lease_type,
		       check_in_date, check_out_date, status, payment_status,
		       total_amount, deposit_amount, created_at, updated_at
		FROM bookings
		WHERE id = $1`, bookingID)
	if err := scanBooking(row, b); err != nil {
		return nil, err
	}
	return b, nil
}

func isOwnerOrAdmin(r *http.Request) bool {
	role, _ := r.Context().Value("userRole").(string)
	return role == models.RoleAdminKos || role == models.RoleSuperadmin
}

// GenBookingCode builds the human-readable booking reference.
func GenBookingCode(seq int64, t time.Time) string {
	return fmt.Sprintf("KOS-%d-%06d", t.Year(), seq)
}

func leaseAmount(room *models.Room, leaseType string) int64 {
	switch leaseType {
	case models.LeaseDaily:
		return room.DailyPrice
	case models.LeaseWeekly:
		return room.DailyPrice * 7
	case models.LeaseQuarterly:
		return room.MonthlyPrice * 3
	case models.LeaseYearly:
		return room.MonthlyPrice * 12
	default:
		return room.MonthlyPrice
	}
}

func leaseCheckOut(checkIn time.Time, leaseType string) time.Time {
	switch leaseType {
	case models.LeaseDaily:
		return checkIn.AddDate(0, 0, 1)
	case models.LeaseWeekly:
		return checkIn.AddDate(0, 0, 7)
	case models.LeaseQuarterly:
		return checkIn.AddDate(0, 3, 0)
	case models.LeaseYearly:
		return checkIn.AddDate(1, 0, 0)
	default:
		return checkIn.AddDate(0, 1, 0)
	}
}

// depositAmount is 30% of the lease total, rounded down to whole rupiah.
func depositAmount(total int64) int64 {
	return total * 30 / 100
}

package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/koskita/backend/internal/clock"
	"github.com/lib/pq"
	"github.com/spf13/viper"
)

const defaultGraceMinutes = 30

// CleanupService expires overdue pending payments and removes abandoned
// unpaid bookings. Everything runs in one transaction so a crash mid-run
// leaves nothing half-deleted and the next run picks it all up again.
type CleanupService struct {
	db    *sql.DB
	clock clock.Clock
}

func NewCleanupService(db *sql.DB, clk clock.Clock) *CleanupService {
	return &CleanupService{db: db, clock: clk}
}

// CleanupReport is what a cron run did.
type CleanupReport struct {
	ExecutedAt           time.Time `json:"executedAt"`
	GraceMinutes         int       `json:"graceMinutes"`
	ExpiredPaymentsCount int       `json:"expiredPaymentsCount"`
	DeletedBookingsCount int       `json:"deletedBookingsCount"`
	DeletedBookingIDs    []string  `json:"deletedBookingIds"`
}

// Run performs one cleanup pass. An UNPAID booking is deleted when no
// payment of it could still settle and either a payment already expired
// or the booking sat payment-less past the grace period. The grace window
// only shields bookings the customer never started paying for.
func (s *CleanupService) Run(ctx context.Context, graceMinutes int) (*CleanupReport, error) {
	now := s.clock.Now()
	cutoff := now.Add(-time.Duration(graceMinutes) * time.Minute)

	report := &CleanupReport{
		ExecutedAt:        now,
		GraceMinutes:      graceMinutes,
		DeletedBookingIDs: []string{},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE payments SET status = 'EXPIRED', updated_at = $1
		WHERE status = 'PENDING' AND expiry_time IS NOT NULL AND expiry_time < $1`,
		now)
	if err != nil {
		return nil, err
	}
	expired, _ := res.RowsAffected()
	report.ExpiredPaymentsCount = int(expired)

	rows, err := tx.Query(`
		SELECT b.id, b.room_id
		FROM bookings b
		WHERE b.status = 'UNPAID'
		  AND NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.booking_id = b.id AND p.status IN ('PENDING', 'SUCCESS')
		  )
		  AND (
			EXISTS (
			  SELECT 1 FROM payments p
			  WHERE p.booking_id = b.id AND p.status = 'EXPIRED'
			)
			OR b.created_at < $1
		  )
		FOR UPDATE OF b`, cutoff)
	if err != nil {
		return nil, err
	}

	var bookingIDs, roomIDs []string
	for rows.Next() {
		var bookingID, roomID string
		if err := rows.Scan(&bookingID, &roomID); err != nil {
			rows.Close()
			return nil, err
		}
		bookingIDs = append(bookingIDs, bookingID)
		roomIDs = append(roomIDs, roomID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(bookingIDs) > 0 {
		_, err = tx.Exec(`DELETE FROM payments WHERE booking_id = ANY($1)`,
			pq.Array(bookingIDs))
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(`DELETE FROM bookings WHERE id = ANY($1)`,
			pq.Array(bookingIDs))
		if err != nil {
			return nil, err
		}
		for _, roomID := range roomIDs {
			if err := releaseRoomTx(tx, roomID, now); err != nil {
				return nil, err
			}
		}
		report.DeletedBookingIDs = bookingIDs
		report.DeletedBookingsCount = len(bookingIDs)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[CLEANUP] Expired %d payments, deleted %d bookings",
		report.ExpiredPaymentsCount, report.DeletedBookingsCount)
	return report, nil
}

// HandleCleanup is the cron entry point. Auth is enforced by middleware.
// @Summary Expire overdue payments and delete abandoned bookings
// @Tags cron
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cron/cleanup-expired [get]
func (s *CleanupService) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	graceMinutes := viper.GetInt("booking.unpaid_grace_minutes")
	if graceMinutes <= 0 {
		graceMinutes = defaultGraceMinutes
	}

	report, err := s.Run(r.Context(), graceMinutes)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		// A non-200 makes the scheduler retry; the next run picks the
		// work back up anyway, so a failed pass is logged and acked.
		log.Printf("[CLEANUP] Run failed: %v", err)
		json.NewEncoder(w).Encode(map[string]any{"success": false})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    report,
	})
}

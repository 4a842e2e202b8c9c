package services

import (
	"database/sql"
	"time"
)

// releaseRoomTx frees a room and recounts the owning property's
// available_rooms inside the caller's transaction.
func releaseRoomTx(tx *sql.Tx, roomID string, now time.Time) error {
	_, err := tx.Exec(`
		UPDATE rooms SET is_available = TRUE, updated_at = $2 WHERE id = $1`,
		roomID, now)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		UPDATE properties
		SET available_rooms = (
			SELECT COUNT(*) FROM rooms
			WHERE rooms.property_id = properties.id AND rooms.is_available
		), updated_at = $2
		WHERE id = (SELECT property_id FROM rooms WHERE rooms.id = $1)`,
		roomID, now)
	return err
}

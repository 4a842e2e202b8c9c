package models

import (
	"time"
)

type Property struct {
	ID             string    `json:"id" db:"id"`
	OwnerID        string    `json:"ownerId" db:"owner_id"` // AdminKos user id
	Name           string    `json:"name" db:"name"`
	Address        string    `json:"address" db:"address"`
	City           string    `json:"city" db:"city"`
	TotalRooms     int       `json:"totalRooms" db:"total_rooms"`
	AvailableRooms int       `json:"availableRooms" db:"available_rooms"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Room availability is the reservation lock: is_available stays false for as
// long as a non-terminal booking holds the room.
type Room struct {
	ID           string    `json:"id" db:"id"`
	PropertyID   string    `json:"propertyId" db:"property_id"`
	Name         string    `json:"name" db:"name"`
	IsAvailable  bool      `json:"isAvailable" db:"is_available"`
	DailyPrice   int64     `json:"dailyPrice" db:"daily_price"`
	MonthlyPrice int64     `json:"monthlyPrice" db:"monthly_price"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

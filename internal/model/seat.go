package model

import "time"

// Seat is a physical seat. Zone is nil on floors without zones.
type Seat struct {
	ID         int64     `gorm:"primaryKey"`
	Floor      int       `gorm:"not null;uniqueIndex:uk_seat_floor_zone_number,priority:1"`
	Zone       *string   `gorm:"size:8;uniqueIndex:uk_seat_floor_zone_number,priority:2"`
	SeatNumber string    `gorm:"size:20;not null;uniqueIndex:uk_seat_floor_zone_number,priority:3"`
	CreatedAt  time.Time `gorm:"not null"`
}

// ZoneValue returns the zone or "" when the seat has none.
func (s Seat) ZoneValue() string {
	if s.Zone == nil {
		return ""
	}
	return *s.Zone
}

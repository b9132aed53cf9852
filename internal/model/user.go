package model

import "time"

// Role tags a participant.
type Role string

const (
	RoleUser   Role = "USER"
	RoleAdmin  Role = "ADMIN"
	RoleSensor Role = "SENSOR"
	RoleSystem Role = "SYSTEM"
)

// User is the profile behind a login id. Occupancy records reference users by
// LoginID.
type User struct {
	ID        int64     `gorm:"primaryKey"`
	LoginID   string    `gorm:"uniqueIndex;size:50;not null"`
	Username  string    `gorm:"size:50;not null"`
	Role      Role      `gorm:"size:16;not null"`
	Floor     *int      // assigned floor for admins
	Zone      *string   `gorm:"size:8"`
	CreatedAt time.Time `gorm:"not null"`
}

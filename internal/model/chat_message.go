package model

import "time"

// ChatMessage is a persisted chat log line.
type ChatMessage struct {
	ID        int64     `gorm:"primaryKey"`
	Floor     int       `gorm:"not null;index"`
	Zone      *string   `gorm:"size:8"`
	Role      *Role     `gorm:"size:16"`
	Nickname  string    `gorm:"size:50"`
	UserID    *int64    `gorm:"index"`
	Message   string    `gorm:"type:text;not null"`
	Admin     bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null;index"`
}

package model

import "time"

// CheckinStatus is the state of an active occupancy record.
type CheckinStatus string

const (
	CheckinInUse CheckinStatus = "IN_USE"
	CheckinAway  CheckinStatus = "AWAY"
)

// SeatState is the derived state of a seat.
type SeatState string

const (
	SeatEmpty SeatState = "EMPTY"
	SeatInUse SeatState = "IN_USE"
	SeatAway  SeatState = "AWAY"
)

// Checkin is one usage session of a seat. A record is active while
// CheckoutTime is nil. Rows are reused for later sessions of the same
// (user, seat) pair.
type Checkin struct {
	ID            int64         `gorm:"primaryKey"`
	SeatID        int64         `gorm:"not null;index"`
	UserID        string        `gorm:"size:64;not null;index"`
	Status        CheckinStatus `gorm:"size:16;not null"`
	CheckinTime   time.Time     `gorm:"not null"`
	AwayStartedAt *time.Time
	CheckoutTime  *time.Time `gorm:"index"`

	// Associations
	Seat Seat `gorm:"constraint:OnDelete:CASCADE"`
}

// Active reports whether the record still holds its seat.
func (c *Checkin) Active() bool {
	return c.CheckoutTime == nil
}

// StartSession resets the record for a new session beginning at now.
func (c *Checkin) StartSession(now time.Time) {
	c.Status = CheckinInUse
	c.CheckinTime = now
	c.AwayStartedAt = nil
	c.CheckoutTime = nil
}

// StartAway marks the occupant as temporarily absent.
func (c *Checkin) StartAway(now time.Time) {
	c.Status = CheckinAway
	c.AwayStartedAt = &now
}

// BackFromAway returns the record to IN_USE.
func (c *Checkin) BackFromAway() {
	c.Status = CheckinInUse
	c.AwayStartedAt = nil
}

// Checkout ends the session.
func (c *Checkin) Checkout(now time.Time) {
	c.CheckoutTime = &now
}

// SeatState mirrors the record's status as a seat state.
func (c *Checkin) SeatState() SeatState {
	if !c.Active() {
		return SeatEmpty
	}
	if c.Status == CheckinAway {
		return SeatAway
	}
	return SeatInUse
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyhall-backend/internal/model"
	"studyhall-backend/internal/scope"
)

// Store defines the record-store operations the service depends on.
type Store interface {
	FindSeat(ctx context.Context, sc scope.Scope, number string) (*model.Seat, error)
	ListSeats(ctx context.Context, sc scope.Scope) ([]model.Seat, error)
	SeedSeats(ctx context.Context, seats []model.Seat) (int, error)
	SeatCounts(ctx context.Context) ([]ScopeCount, error)

	FindActiveBySeat(ctx context.Context, seatID int64) (*model.Checkin, error)
	FindActiveByUser(ctx context.Context, userID string) (*model.Checkin, error)
	FindLatestForUserSeat(ctx context.Context, userID string, seatID int64) (*model.Checkin, error)
	FindActiveInScope(ctx context.Context, sc scope.Scope) ([]model.Checkin, error)
	FindExpiredAway(ctx context.Context, before time.Time) ([]model.Checkin, error)
	SaveCheckin(ctx context.Context, c *model.Checkin) error

	AppendChatLog(ctx context.Context, entry ChatEntry) error
	AppendSensorReadings(ctx context.Context, readings []model.SensorReading) error

	SubscriptionsForUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	PutSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// inScope restricts a query on seats (or a join with seats) to sc.
func inScope(tx *gorm.DB, sc scope.Scope) *gorm.DB {
	tx = tx.Where("seats.floor = ?", sc.Floor)
	if sc.Zone == scope.ZoneNone {
		return tx.Where("seats.zone IS NULL")
	}
	return tx.Where("seats.zone = ?", string(sc.Zone))
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// FindSeat looks a seat up by scope and seat number.
func (s *gormStore) FindSeat(ctx context.Context, sc scope.Scope, number string) (*model.Seat, error) {
	var seat model.Seat
	err := inScope(s.db.WithContext(ctx).Table("seats"), sc).
		Where("seats.seat_number = ?", number).
		Take(&seat).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &seat, nil
}

// ListSeats returns every seat in sc.
func (s *gormStore) ListSeats(ctx context.Context, sc scope.Scope) ([]model.Seat, error) {
	var seats []model.Seat
	if err := inScope(s.db.WithContext(ctx).Table("seats"), sc).Find(&seats).Error; err != nil {
		return nil, fmt.Errorf("list seats in %s: %w", sc, err)
	}
	return seats, nil
}

func seatKey(floor int, zone *string, number string) string {
	z := ""
	if zone != nil {
		z = *zone
	}
	return fmt.Sprintf("%d|%s|%s", floor, z, number)
}

// SeedSeats inserts the seats that do not exist yet and returns how many were
// created. Matching is done in Go because a NULL zone never conflicts on the
// unique index.
func (s *gormStore) SeedSeats(ctx context.Context, seats []model.Seat) (int, error) {
	var existing []model.Seat
	if err := s.db.WithContext(ctx).Find(&existing).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch existing seats: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, seat := range existing {
		known[seatKey(seat.Floor, seat.Zone, seat.SeatNumber)] = struct{}{}
	}

	var missing []model.Seat
	for _, seat := range seats {
		key := seatKey(seat.Floor, seat.Zone, seat.SeatNumber)
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = struct{}{}
		missing = append(missing, seat)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&missing, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed seats: %w", err)
	}
	return len(missing), nil
}

// SeatCounts aggregates the seat table per scope.
func (s *gormStore) SeatCounts(ctx context.Context) ([]ScopeCount, error) {
	var rows []ScopeCount
	err := s.db.WithContext(ctx).
		Model(&model.Seat{}).
		Select("floor, zone, COUNT(*) as seats").
		Group("floor, zone").
		Order("floor, zone").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate seats: %w", err)
	}
	return rows, nil
}

// FindActiveBySeat returns the seat's active record.
func (s *gormStore) FindActiveBySeat(ctx context.Context, seatID int64) (*model.Checkin, error) {
	var c model.Checkin
	err := s.db.WithContext(ctx).
		Preload("Seat").
		Where("seat_id = ? AND checkout_time IS NULL", seatID).
		Order("checkin_time DESC").
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindActiveByUser returns the user's active record on any seat.
func (s *gormStore) FindActiveByUser(ctx context.Context, userID string) (*model.Checkin, error) {
	var c model.Checkin
	err := s.db.WithContext(ctx).
		Preload("Seat").
		Where("user_id = ? AND checkout_time IS NULL", userID).
		Order("checkin_time DESC").
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindLatestForUserSeat returns the most recent record for the pair, active
// or not.
func (s *gormStore) FindLatestForUserSeat(ctx context.Context, userID string, seatID int64) (*model.Checkin, error) {
	var c model.Checkin
	err := s.db.WithContext(ctx).
		Preload("Seat").
		Where("user_id = ? AND seat_id = ?", userID, seatID).
		Order("checkin_time DESC").
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindActiveInScope returns every active record whose seat is in sc.
func (s *gormStore) FindActiveInScope(ctx context.Context, sc scope.Scope) ([]model.Checkin, error) {
	var records []model.Checkin
	tx := s.db.WithContext(ctx).
		Preload("Seat").
		Joins("JOIN seats ON seats.id = checkins.seat_id").
		Where("checkins.checkout_time IS NULL")
	if err := inScope(tx, sc).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch active checkins in %s: %w", sc, err)
	}
	return records, nil
}

// FindExpiredAway returns active AWAY records whose away period began before
// the given instant.
func (s *gormStore) FindExpiredAway(ctx context.Context, before time.Time) ([]model.Checkin, error) {
	var records []model.Checkin
	err := s.db.WithContext(ctx).
		Preload("Seat").
		Where("status = ? AND checkout_time IS NULL AND away_started_at < ?", model.CheckinAway, before).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expired away checkins: %w", err)
	}
	return records, nil
}

// SaveCheckin inserts or updates a record without touching its seat.
func (s *gormStore) SaveCheckin(ctx context.Context, c *model.Checkin) error {
	tx := s.db.WithContext(ctx).Omit(clause.Associations)
	if c.ID == 0 {
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("failed to create checkin for seat %d: %w", c.SeatID, err)
		}
		return nil
	}
	if err := tx.Save(c).Error; err != nil {
		return fmt.Errorf("failed to update checkin %d: %w", c.ID, err)
	}
	return nil
}

// AppendChatLog persists a chat line. The sender's display name is resolved
// from the users table and falls back to the raw sender.
func (s *gormStore) AppendChatLog(ctx context.Context, entry ChatEntry) error {
	msg := model.ChatMessage{
		Floor:    entry.Scope.Floor,
		Zone:     entry.Scope.Zone.Ptr(),
		Nickname: entry.Sender,
		Message:  entry.Message,
		Admin:    entry.Admin,
	}
	if entry.Role != "" {
		role := model.Role(strings.ToUpper(entry.Role))
		msg.Role = &role
	}

	if entry.Sender != "" {
		var user model.User
		err := s.db.WithContext(ctx).Where("login_id = ?", entry.Sender).Take(&user).Error
		switch {
		case err == nil:
			msg.UserID = &user.ID
			msg.Nickname = user.Username
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to resolve chat sender %q: %w", entry.Sender, err)
		}
	}

	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("failed to append chat log: %w", err)
	}
	return nil
}

// AppendSensorReadings persists readings in one transaction.
func (s *gormStore) AppendSensorReadings(ctx context.Context, readings []model.SensorReading) error {
	if len(readings) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&readings).Error; err != nil {
		return fmt.Errorf("failed to append %d sensor readings: %w", len(readings), err)
	}
	return nil
}

// SubscriptionsForUser returns the user's push subscriptions.
func (s *gormStore) SubscriptionsForUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for user %q: %w", userID, err)
	}
	return subs, nil
}

// GetSubscription returns a subscription by endpoint.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Take(&sub).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// PutSubscription creates or replaces a subscription.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
}

// DeleteSubscription removes a subscription by endpoint.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studyhall-backend/internal/model"
)

// newTestDB returns a postgres-dialect gorm handle over sqlmock.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_FindActiveBySeat_NotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "checkins" WHERE seat_id = \$1 AND checkout_time IS NULL`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seat_id", "user_id", "status", "checkin_time"}))

	_, err := s.FindActiveBySeat(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindActiveBySeat_PreloadsSeat(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM "checkins" WHERE seat_id = \$1 AND checkout_time IS NULL`).
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seat_id", "user_id", "status", "checkin_time"}).
			AddRow(11, 3, "u1", "IN_USE", now))
	mock.ExpectQuery(`SELECT \* FROM "seats" WHERE "seats"."id" = \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "floor", "zone", "seat_number"}).
			AddRow(3, 2, "A", "5"))

	c, err := s.FindActiveBySeat(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, model.CheckinInUse, c.Status)
	assert.Equal(t, "5", c.Seat.SeatNumber)
	assert.Equal(t, "A", c.Seat.ZoneValue())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AppendSensorReadings(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)
	now := time.Now().UTC()

	readings := []model.SensorReading{
		{Floor: 3, Type: model.SensorTemp, Value: 22.5, Sender: "s1", CreatedAt: now},
		{Floor: 3, Type: model.SensorCO2, Value: 610, Sender: "s1", CreatedAt: now},
		{Floor: 3, Type: model.SensorLux, Value: 300, Sender: "s1", CreatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "sensor_readings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))
	mock.ExpectCommit()

	require.NoError(t, s.AppendSensorReadings(context.Background(), readings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AppendSensorReadings_Empty(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	require.NoError(t, s.AppendSensorReadings(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SubscriptionsForUser_Error(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.SubscriptionsForUser(context.Background(), "u1")
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

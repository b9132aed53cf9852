package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhall-backend/config"
)

func TestLayoutSeats(t *testing.T) {
	seats, err := LayoutSeats([]config.FloorLayout{
		{Floor: 2, Zones: []string{"a", "B"}, SeatsPerZone: 3},
		{Floor: 3, SeatsPerZone: 2},
	})
	require.NoError(t, err)
	require.Len(t, seats, 8)

	assert.Equal(t, 2, seats[0].Floor)
	require.NotNil(t, seats[0].Zone)
	assert.Equal(t, "A", *seats[0].Zone)
	assert.Equal(t, "1", seats[0].SeatNumber)
	assert.Equal(t, "B", *seats[3].Zone)

	assert.Equal(t, 3, seats[7].Floor)
	assert.Nil(t, seats[7].Zone)
	assert.Equal(t, "2", seats[7].SeatNumber)
}

func TestLayoutSeats_Invalid(t *testing.T) {
	cases := map[string][]config.FloorLayout{
		"floor zero":   {{Floor: 0, SeatsPerZone: 1}},
		"no seats":     {{Floor: 1}},
		"unknown zone": {{Floor: 1, Zones: []string{"C"}, SeatsPerZone: 1}},
	}
	for name, layout := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LayoutSeats(layout)
			assert.Error(t, err)
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestOpenAndMigrate_SQLite(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: "sqlite", DSN: t.TempDir() + "/test.db"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, table := range []string{"seats", "users", "checkins", "chat_messages", "sensor_readings", "push_subscriptions"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

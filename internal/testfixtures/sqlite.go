// Package testfixtures provides database and clock helpers shared by package
// tests.
package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studyhall-backend/config"
	"studyhall-backend/internal/db"
	"studyhall-backend/internal/store"
)

// DefaultLayout mirrors the building: floors 1, 2 and 5 have zones A and B,
// the others have none.
func DefaultLayout(seatsPerZone int) []config.FloorLayout {
	ab := []string{"A", "B"}
	return []config.FloorLayout{
		{Floor: 1, Zones: ab, SeatsPerZone: seatsPerZone},
		{Floor: 2, Zones: ab, SeatsPerZone: seatsPerZone},
		{Floor: 3, SeatsPerZone: seatsPerZone},
		{Floor: 4, SeatsPerZone: seatsPerZone},
		{Floor: 5, Zones: ab, SeatsPerZone: seatsPerZone},
		{Floor: 6, SeatsPerZone: seatsPerZone},
	}
}

// NewSQLite opens a migrated SQLite database in a temporary directory.
func NewSQLite(tb testing.TB) *gorm.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "studyhall.db")
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("failed to get sql.DB: %v", err)
	}
	// SQLite serialises writers; one connection keeps concurrent tests from
	// hitting SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		tb.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

// NewSeededStore returns a store over a fresh database seeded with
// DefaultLayout(seatsPerZone).
func NewSeededStore(tb testing.TB, seatsPerZone int) store.Store {
	tb.Helper()

	gdb := NewSQLite(tb)
	seats, err := db.LayoutSeats(DefaultLayout(seatsPerZone))
	if err != nil {
		tb.Fatalf("failed to build layout: %v", err)
	}
	st := store.NewGormStore(gdb)
	if _, err := st.SeedSeats(context.Background(), seats); err != nil {
		tb.Fatalf("failed to seed seats: %v", err)
	}
	return st
}

package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studyhall-backend/config"
	"studyhall-backend/internal/model"
	"studyhall-backend/internal/store"
)

// Open connects to the configured database and applies the pool settings.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logMode := logger.Warn
	if cfg.LogQueries {
		logMode = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Seat{},
		&model.User{},
		&model.Checkin{},
		&model.ChatMessage{},
		&model.SensorReading{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// Init opens the database, runs migrations and seeds the seat layout.
func Init(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(&cfg.Database)
	if err != nil {
		return nil, err
	}

	log.Info("running database migrations", zap.String("driver", cfg.Database.Driver))
	if err := Migrate(db); err != nil {
		return nil, err
	}

	seats, err := LayoutSeats(cfg.Layout)
	if err != nil {
		return nil, err
	}
	created, err := store.NewGormStore(db).SeedSeats(ctx, seats)
	if err != nil {
		return nil, err
	}
	log.Info("database initialization complete",
		zap.Int("layout_seats", len(seats)),
		zap.Int("seats_created", created))
	return db, nil
}

// LayoutSeats expands the configured floor layout into seat rows. Seat
// numbers run from 1 within each zone.
func LayoutSeats(layout []config.FloorLayout) ([]model.Seat, error) {
	var seats []model.Seat
	for _, fl := range layout {
		if fl.Floor <= 0 {
			return nil, fmt.Errorf("layout: invalid floor %d", fl.Floor)
		}
		if fl.SeatsPerZone <= 0 {
			return nil, fmt.Errorf("layout: floor %d has no seats", fl.Floor)
		}

		zones := []*string{nil}
		if len(fl.Zones) > 0 {
			zones = zones[:0]
			for _, raw := range fl.Zones {
				z := strings.ToUpper(strings.TrimSpace(raw))
				if z != "A" && z != "B" {
					return nil, fmt.Errorf("layout: floor %d has unknown zone %q", fl.Floor, raw)
				}
				zones = append(zones, &z)
			}
		}

		for _, zone := range zones {
			for n := 1; n <= fl.SeatsPerZone; n++ {
				seats = append(seats, model.Seat{
					Floor:      fl.Floor,
					Zone:       zone,
					SeatNumber: strconv.Itoa(n),
				})
			}
		}
	}
	return seats, nil
}

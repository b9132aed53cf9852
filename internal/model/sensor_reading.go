package model

import "time"

// SensorType names a measured metric.
type SensorType string

const (
	SensorTemp SensorType = "TEMP"
	SensorCO2  SensorType = "CO2"
	SensorLux  SensorType = "LUX"
)

// SensorReading is one persisted metric sample.
type SensorReading struct {
	ID        int64      `gorm:"primaryKey"`
	Floor     int        `gorm:"not null;index:idx_sensor_scope_time,priority:1"`
	Zone      *string    `gorm:"size:8;index:idx_sensor_scope_time,priority:2"`
	Type      SensorType `gorm:"size:8;not null"`
	Value     float64    `gorm:"not null"`
	Sender    string     `gorm:"size:64"`
	CreatedAt time.Time  `gorm:"not null;index:idx_sensor_scope_time,priority:3"`
}

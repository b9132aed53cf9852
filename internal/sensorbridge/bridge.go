// Package sensorbridge feeds environment readings published over MQTT into
// the sensor cache and fans them out as DASHBOARD_UPDATE frames, exactly as
// SENSOR_DATA lines from socket clients are handled.
package sensorbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"studyhall-backend/internal/hub"
	"studyhall-backend/internal/metrics"
	"studyhall-backend/internal/parse"
	"studyhall-backend/internal/protocol"
	"studyhall-backend/internal/sensor"
)

// Broadcaster delivers a frame to its scope.
type Broadcaster interface {
	Broadcast(f *protocol.Frame, exclude hub.Client) (int, error)
}

type reading struct {
	Temp   *float64 `json:"temp"`
	CO2    *float64 `json:"co2"`
	Lux    *float64 `json:"lux"`
	Sender string   `json:"sender"`
}

// Bridge turns MQTT messages into sensor snapshots.
type Bridge struct {
	sensors *sensor.Cache
	hub     Broadcaster
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Bridge.
func New(sensors *sensor.Cache, b Broadcaster, log *zap.Logger, m *metrics.Metrics) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{sensors: sensors, hub: b, log: log.Named("sensorbridge"), metrics: m}
}

// HandleMessage ingests one message published on a topic ending in a scope
// label, e.g. "studyhall/sensors/2F-A".
func (b *Bridge) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	sc, err := parse.TopicScope(topic)
	if err != nil {
		b.metrics.Rejected("bad_topic")
		return fmt.Errorf("topic %q: %w", topic, err)
	}

	var r reading
	if err := json.Unmarshal(payload, &r); err != nil {
		b.metrics.Rejected("bad_json")
		return fmt.Errorf("decode reading on %q: %w", topic, err)
	}
	if r.Temp == nil || r.CO2 == nil || r.Lux == nil {
		b.metrics.Rejected("missing_field")
		return errors.New("reading requires temp, co2 and lux")
	}

	sender := r.Sender
	if sender == "" {
		sender = "mqtt"
	}
	snap := b.sensors.Ingest(ctx, sc, *r.Temp, *r.CO2, *r.Lux, sender)
	n, err := b.hub.Broadcast(snap.Frame(), nil)
	if err != nil {
		return fmt.Errorf("broadcast reading for %s: %w", sc, err)
	}
	b.log.Debug("sensor reading relayed", zap.Stringer("scope", sc), zap.Int("recipients", n))
	return nil
}

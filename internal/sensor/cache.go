// Package sensor keeps the latest environmental reading per scope.
package sensor

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"studyhall-backend/internal/metrics"
	"studyhall-backend/internal/model"
	"studyhall-backend/internal/protocol"
	"studyhall-backend/internal/scope"
)

// Snapshot is the most recent reading for a scope.
type Snapshot struct {
	Scope     scope.Scope
	Temp      float64
	CO2       float64
	Lux       float64
	Sender    string
	UpdatedAt time.Time
}

// Frame renders the snapshot as a DASHBOARD_UPDATE.
func (s Snapshot) Frame() *protocol.Frame {
	return protocol.DashboardUpdate(s.Scope, s.Temp, s.CO2, s.Lux)
}

// ReadingStore persists reading history.
type ReadingStore interface {
	AppendSensorReadings(ctx context.Context, readings []model.SensorReading) error
}

// Cache is the in-memory snapshot map. Entries never expire; they are
// overwritten by the next reading for the same scope.
type Cache struct {
	store   ReadingStore
	items   *gocache.Cache
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewCache creates an empty cache that persists readings to st.
func NewCache(st ReadingStore, log *zap.Logger, m *metrics.Metrics) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		store:   st,
		items:   gocache.New(gocache.NoExpiration, 0),
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
		metrics: m,
	}
}

// SetClock replaces time.Now. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Ingest records a reading. Persistence failures are logged and do not stop
// the snapshot from being updated.
func (c *Cache) Ingest(ctx context.Context, sc scope.Scope, temp, co2, lux float64, sender string) Snapshot {
	now := c.now()

	if c.store != nil {
		zone := sc.Zone.Ptr()
		readings := []model.SensorReading{
			{Floor: sc.Floor, Zone: zone, Type: model.SensorTemp, Value: temp, Sender: sender, CreatedAt: now},
			{Floor: sc.Floor, Zone: zone, Type: model.SensorCO2, Value: co2, Sender: sender, CreatedAt: now},
			{Floor: sc.Floor, Zone: zone, Type: model.SensorLux, Value: lux, Sender: sender, CreatedAt: now},
		}
		if err := c.store.AppendSensorReadings(ctx, readings); err != nil {
			c.log.Warn("failed to persist sensor readings",
				zap.Stringer("scope", sc), zap.String("sender", sender), zap.Error(err))
		}
	}

	snap := Snapshot{Scope: sc, Temp: temp, CO2: co2, Lux: lux, Sender: sender, UpdatedAt: now}
	c.items.Set(sc.Key(), snap, gocache.NoExpiration)
	c.metrics.SensorReading()
	return snap
}

// Latest returns the cached snapshot for sc.
func (c *Cache) Latest(sc scope.Scope) (Snapshot, bool) {
	v, ok := c.items.Get(sc.Key())
	if !ok {
		return Snapshot{}, false
	}
	return v.(Snapshot), true
}

// All returns every cached snapshot ordered by floor then zone.
func (c *Cache) All() []Snapshot {
	items := c.items.Items()
	out := make([]Snapshot, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Snapshot))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope.Floor != out[j].Scope.Floor {
			return out[i].Scope.Floor < out[j].Scope.Floor
		}
		return out[i].Scope.Zone < out[j].Scope.Zone
	})
	return out
}

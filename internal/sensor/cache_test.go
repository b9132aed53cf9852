package sensor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"studyhall-backend/internal/model"
	"studyhall-backend/internal/protocol"
	"studyhall-backend/internal/scope"
)

type fakeReadingStore struct {
	mu       sync.Mutex
	readings []model.SensorReading
	err      error
}

func (f *fakeReadingStore) AppendSensorReadings(_ context.Context, r []model.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.readings = append(f.readings, r...)
	return nil
}

func TestIngest_PersistsAndCaches(t *testing.T) {
	st := &fakeReadingStore{}
	c := NewCache(st, zaptest.NewLogger(t), nil)
	at := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return at })

	sc := scope.New(2, scope.ZoneA)
	_, ok := c.Latest(sc)
	assert.False(t, ok)

	snap := c.Ingest(context.Background(), sc, 22.5, 640, 310, "sensor-1")
	assert.Equal(t, at, snap.UpdatedAt)

	require.Len(t, st.readings, 3)
	types := []model.SensorType{st.readings[0].Type, st.readings[1].Type, st.readings[2].Type}
	assert.ElementsMatch(t, []model.SensorType{model.SensorTemp, model.SensorCO2, model.SensorLux}, types)
	assert.Equal(t, "A", *st.readings[0].Zone)

	got, ok := c.Latest(sc)
	require.True(t, ok)
	assert.Equal(t, 640.0, got.CO2)

	_, ok = c.Latest(scope.New(2, scope.ZoneB))
	assert.False(t, ok)
}

func TestIngest_OverwritesInPlace(t *testing.T) {
	c := NewCache(&fakeReadingStore{}, nil, nil)
	sc := scope.New(3, scope.ZoneNone)

	c.Ingest(context.Background(), sc, 20, 500, 100, "s")
	c.Ingest(context.Background(), sc, 21, 510, 110, "s")

	got, ok := c.Latest(sc)
	require.True(t, ok)
	assert.Equal(t, 21.0, got.Temp)
	assert.Len(t, c.All(), 1)
}

func TestIngest_PersistenceFailureStillUpdates(t *testing.T) {
	c := NewCache(&fakeReadingStore{err: errors.New("db down")}, zaptest.NewLogger(t), nil)
	sc := scope.New(1, scope.ZoneB)

	snap := c.Ingest(context.Background(), sc, 19, 450, 90, "s")
	assert.Equal(t, 19.0, snap.Temp)

	_, ok := c.Latest(sc)
	assert.True(t, ok)
}

func TestAll_Ordered(t *testing.T) {
	c := NewCache(nil, nil, nil)
	c.Ingest(context.Background(), scope.New(5, scope.ZoneB), 1, 1, 1, "")
	c.Ingest(context.Background(), scope.New(1, scope.ZoneA), 1, 1, 1, "")
	c.Ingest(context.Background(), scope.New(5, scope.ZoneA), 1, 1, 1, "")

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, scope.New(1, scope.ZoneA), all[0].Scope)
	assert.Equal(t, scope.New(5, scope.ZoneA), all[1].Scope)
	assert.Equal(t, scope.New(5, scope.ZoneB), all[2].Scope)
}

func TestSnapshotFrame(t *testing.T) {
	snap := Snapshot{Scope: scope.New(2, scope.ZoneA), Temp: 22, CO2: 600, Lux: 300}
	f := snap.Frame()
	assert.Equal(t, protocol.TypeDashboardUpdate, f.Type)
	require.NotNil(t, f.Floor)
	assert.Equal(t, 2, *f.Floor)
	assert.Equal(t, "A", *f.Room)
	assert.Equal(t, 600.0, *f.CO2)
}

package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"studyhall-backend/config"
	"studyhall-backend/internal/hub"
	"studyhall-backend/internal/notification"
	"studyhall-backend/internal/occupancy"
	"studyhall-backend/internal/protocol"
	"studyhall-backend/internal/scope"
	"studyhall-backend/internal/testfixtures"
)

type recordingHub struct {
	mu     sync.Mutex
	frames []*protocol.Frame
}

func (r *recordingHub) Broadcast(f *protocol.Frame, _ hub.Client) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return 1, nil
}

func (r *recordingHub) all() []*protocol.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*protocol.Frame(nil), r.frames...)
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []notification.Job
}

func (r *recordingNotifier) Dispatch(job notification.Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return true
}

func setup(t *testing.T) (*occupancy.Service, *testfixtures.Clock) {
	t.Helper()
	clock := testfixtures.NewClock(time.Time{})
	occ := occupancy.NewService(testfixtures.NewSeededStore(t, 6), occupancy.Policy{
		SessionLength: 2 * time.Hour,
		AwayAllowance: time.Hour,
		AwayThreshold: time.Hour,
	}, occupancy.WithClock(clock.Now))
	return occ, clock
}

func TestSweepOnce_BroadcastsOnlyAffectedScopes(t *testing.T) {
	occ, clock := setup(t)
	ctx := context.Background()
	floor2A := scope.New(2, scope.ZoneA)
	floor3 := scope.New(3, scope.ZoneNone)

	_, err := occ.Checkin(ctx, floor2A, 5, "u1")
	require.NoError(t, err)
	_, err = occ.Checkin(ctx, floor3, 1, "u2")
	require.NoError(t, err)
	_, err = occ.StartAway(ctx, floor2A, 5, "u1")
	require.NoError(t, err)

	h := &recordingHub{}
	n := &recordingNotifier{}
	svc := NewService(config.SweeperConfig{Enabled: true, Interval: time.Minute}, occ, h, n, zaptest.NewLogger(t), nil)

	// Nothing has expired yet: no broadcasts at all.
	clock.Advance(59 * time.Minute)
	assert.Zero(t, svc.SweepOnce(ctx))
	assert.Empty(t, h.all())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, svc.SweepOnce(ctx))

	frames := h.all()
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.TypeSeatUpdate, frames[0].Type)
	sc, ok := frames[0].Scope()
	require.True(t, ok)
	assert.Equal(t, floor2A, sc)
	seat := frames[0].Seats[4]
	assert.Equal(t, 5, seat.SeatNo)
	assert.Equal(t, "EMPTY", seat.State)
	assert.Nil(t, seat.UserID)

	require.Len(t, n.jobs, 1)
	assert.Equal(t, notification.Job{UserID: "u1", Scope: floor2A, SeatNumber: "5"}, n.jobs[0])

	// Idempotent.
	assert.Zero(t, svc.SweepOnce(ctx))
	assert.Len(t, h.all(), 1)
}

func TestSweepOnce_NilNotifier(t *testing.T) {
	occ, clock := setup(t)
	ctx := context.Background()
	sc := scope.New(1, scope.ZoneB)

	_, err := occ.Checkin(ctx, sc, 1, "u1")
	require.NoError(t, err)
	_, err = occ.StartAway(ctx, sc, 1, "u1")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	svc := NewService(config.SweeperConfig{Enabled: true}, occ, &recordingHub{}, nil, nil, nil)
	assert.Equal(t, 1, svc.SweepOnce(ctx))
}

func TestRun_DisabledReturnsImmediately(t *testing.T) {
	occ, _ := setup(t)
	svc := NewService(config.SweeperConfig{Enabled: false}, occ, &recordingHub{}, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		svc.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for a disabled sweeper")
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	occ, clock := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	sc := scope.New(4, scope.ZoneNone)

	_, err := occ.Checkin(ctx, sc, 2, "u1")
	require.NoError(t, err)
	_, err = occ.StartAway(ctx, sc, 2, "u1")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	h := &recordingHub{}
	svc := NewService(config.SweeperConfig{Enabled: true, Interval: 10 * time.Millisecond}, occ, h, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(h.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

// Package occupancy implements the seat state machine:
// EMPTY -> IN_USE -> AWAY -> IN_USE -> EMPTY.
//
// Every mutation runs under a per-seat lock so that the read-decide-write
// sequence is atomic for that seat. Check-in additionally takes a per-user
// lock (always before the seat lock) so a user cannot end up holding two
// seats.
package occupancy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"studyhall-backend/config"
	"studyhall-backend/internal/metrics"
	"studyhall-backend/internal/model"
	"studyhall-backend/internal/protocol"
	"studyhall-backend/internal/scope"
	"studyhall-backend/internal/store"
)

// Policy holds the time limits applied to sessions.
type Policy struct {
	// SessionLength is the nominal length of an IN_USE session.
	SessionLength time.Duration
	// AwayAllowance is the remaining-time budget shown for an AWAY seat.
	AwayAllowance time.Duration
	// AwayThreshold is how long a seat may stay AWAY before the sweeper
	// releases it.
	AwayThreshold time.Duration
}

// PolicyFromConfig converts the occupancy config section.
func PolicyFromConfig(cfg config.OccupancyConfig) Policy {
	return Policy{
		SessionLength: cfg.SessionLength,
		AwayAllowance: cfg.AwayAllowance,
		AwayThreshold: cfg.AwayThreshold,
	}
}

// Service owns all seat transitions.
type Service struct {
	store   store.Store
	policy  Policy
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics

	seatLocks *keyLock[int64]
	userLocks *keyLock[string]
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics records transitions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service over st.
func NewService(st store.Store, policy Policy, opts ...Option) *Service {
	s := &Service{
		store:     st,
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
		log:       zap.NewNop(),
		seatLocks: newKeyLock[int64](),
		userLocks: newKeyLock[string](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured limits.
func (s *Service) Policy() Policy {
	return s.policy
}

func (s *Service) record(action string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsDomainError(err):
		result = "rejected"
	default:
		result = "error"
	}
	s.metrics.Transition(action, result)
}

func (s *Service) findSeat(ctx context.Context, sc scope.Scope, seatNo int) (*model.Seat, error) {
	if seatNo <= 0 {
		return nil, ErrSeatNotFound
	}
	seat, err := s.store.FindSeat(ctx, sc, strconv.Itoa(seatNo))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find seat %d in %s: %w", seatNo, sc, err)
	}
	return seat, nil
}

// Checkin starts a session for userID on the given seat. The most recent
// record for the same (user, seat) pair is reused when one exists.
func (s *Service) Checkin(ctx context.Context, sc scope.Scope, seatNo int, userID string) (rec *model.Checkin, err error) {
	defer func() { s.record("checkin", err) }()

	if userID == "" {
		return nil, ErrMissingUser
	}
	seat, err := s.findSeat(ctx, sc, seatNo)
	if err != nil {
		return nil, err
	}

	unlockUser := s.userLocks.Lock(userID)
	defer unlockUser()
	unlockSeat := s.seatLocks.Lock(seat.ID)
	defer unlockSeat()

	if _, err := s.store.FindActiveByUser(ctx, userID); err == nil {
		return nil, ErrAlreadyCheckedIn
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check active session of user %q: %w", userID, err)
	}

	if _, err := s.store.FindActiveBySeat(ctx, seat.ID); err == nil {
		return nil, ErrSeatOccupied
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check active session of seat %d: %w", seat.ID, err)
	}

	rec, err = s.store.FindLatestForUserSeat(ctx, userID, seat.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec = &model.Checkin{SeatID: seat.ID, UserID: userID}
	case err != nil:
		return nil, fmt.Errorf("find previous session: %w", err)
	}

	rec.StartSession(s.now())
	if err := s.store.SaveCheckin(ctx, rec); err != nil {
		return nil, err
	}
	rec.Seat = *seat
	s.log.Debug("seat checked in",
		zap.Stringer("scope", sc), zap.Int("seat", seatNo), zap.String("user", userID))
	return rec, nil
}

// mutate applies fn to the seat's active record owned by userID.
func (s *Service) mutate(ctx context.Context, sc scope.Scope, seatNo int, userID string, fn func(*model.Checkin) error) (*model.Checkin, error) {
	seat, err := s.findSeat(ctx, sc, seatNo)
	if err != nil {
		return nil, err
	}

	unlock := s.seatLocks.Lock(seat.ID)
	defer unlock()

	rec, err := s.store.FindActiveBySeat(ctx, seat.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("find active session of seat %d: %w", seat.ID, err)
	}
	if rec.UserID != userID {
		return nil, ErrNotOwner
	}

	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := s.store.SaveCheckin(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// StartAway marks the caller's IN_USE seat as AWAY.
func (s *Service) StartAway(ctx context.Context, sc scope.Scope, seatNo int, userID string) (rec *model.Checkin, err error) {
	defer func() { s.record("away_start", err) }()
	return s.mutate(ctx, sc, seatNo, userID, func(c *model.Checkin) error {
		if c.Status != model.CheckinInUse {
			return ErrInvalidTransition
		}
		c.StartAway(s.now())
		return nil
	})
}

// BackFromAway returns the caller's AWAY seat to IN_USE.
func (s *Service) BackFromAway(ctx context.Context, sc scope.Scope, seatNo int, userID string) (rec *model.Checkin, err error) {
	defer func() { s.record("away_back", err) }()
	return s.mutate(ctx, sc, seatNo, userID, func(c *model.Checkin) error {
		if c.Status != model.CheckinAway {
			return ErrInvalidTransition
		}
		c.BackFromAway()
		return nil
	})
}

// Checkout ends the caller's session on the seat.
func (s *Service) Checkout(ctx context.Context, sc scope.Scope, seatNo int, userID string) (rec *model.Checkin, err error) {
	defer func() { s.record("checkout", err) }()
	return s.mutate(ctx, sc, seatNo, userID, func(c *model.Checkin) error {
		c.Checkout(s.now())
		return nil
	})
}

// Expiry is the outcome of one forced-expiry pass.
type Expiry struct {
	// Scopes lists each affected scope once, in the order first seen.
	Scopes []scope.Scope
	// Released holds the records that were checked out.
	Released []model.Checkin
}

// ExpireAway checks out every AWAY record whose away period started more than
// AwayThreshold ago. A record that fails to save is logged and skipped; the
// first such error is returned alongside the partial result.
func (s *Service) ExpireAway(ctx context.Context) (Expiry, error) {
	var out Expiry

	now := s.now()
	cutoff := now.Add(-s.policy.AwayThreshold)
	candidates, err := s.store.FindExpiredAway(ctx, cutoff)
	if err != nil {
		return out, err
	}

	seen := make(map[scope.Scope]struct{})
	var firstErr error
	for _, cand := range candidates {
		rec, err := s.expireOne(ctx, cand, cutoff, now)
		if err != nil {
			s.record("expire", err)
			s.log.Error("failed to expire away seat",
				zap.Int64("checkin_id", cand.ID), zap.Int64("seat_id", cand.SeatID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if rec == nil {
			continue
		}
		s.record("expire", nil)

		sc := scope.New(rec.Seat.Floor, scope.Zone(rec.Seat.ZoneValue()))
		if _, ok := seen[sc]; !ok {
			seen[sc] = struct{}{}
			out.Scopes = append(out.Scopes, sc)
		}
		out.Released = append(out.Released, *rec)
	}
	return out, firstErr
}

// expireOne re-reads the seat under its lock so that a concurrent AWAY_BACK or
// CHECKOUT wins over the sweep. It returns nil when nothing was expired.
func (s *Service) expireOne(ctx context.Context, cand model.Checkin, cutoff, now time.Time) (*model.Checkin, error) {
	unlock := s.seatLocks.Lock(cand.SeatID)
	defer unlock()

	rec, err := s.store.FindActiveBySeat(ctx, cand.SeatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.ID != cand.ID || rec.Status != model.CheckinAway ||
		rec.AwayStartedAt == nil || !rec.AwayStartedAt.Before(cutoff) {
		return nil, nil
	}

	rec.Checkout(now)
	if err := s.store.SaveCheckin(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SeatStatus derives the state of one seat.
func (s *Service) SeatStatus(ctx context.Context, sc scope.Scope, seatNo int) (model.SeatState, error) {
	seat, err := s.findSeat(ctx, sc, seatNo)
	if err != nil {
		return "", err
	}
	rec, err := s.store.FindActiveBySeat(ctx, seat.ID)
	if errors.Is(err, store.ErrNotFound) {
		return model.SeatEmpty, nil
	}
	if err != nil {
		return "", err
	}
	return rec.SeatState(), nil
}

// remaining returns the whole seconds left for an active record, floored at
// zero.
func (s *Service) remaining(rec *model.Checkin, now time.Time) int {
	var deadline time.Time
	switch {
	case rec.Status == model.CheckinAway && rec.AwayStartedAt != nil:
		deadline = rec.AwayStartedAt.Add(s.policy.AwayAllowance)
	default:
		deadline = rec.CheckinTime.Add(s.policy.SessionLength)
	}
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// SeatsInScope lists every seat of the scope with its derived state, ordered
// by seat number.
func (s *Service) SeatsInScope(ctx context.Context, sc scope.Scope) ([]protocol.SeatInfo, error) {
	seats, err := s.store.ListSeats(ctx, sc)
	if err != nil {
		return nil, err
	}
	active, err := s.store.FindActiveInScope(ctx, sc)
	if err != nil {
		return nil, err
	}

	// Keep the latest record should a seat ever surface two.
	bySeat := make(map[int64]*model.Checkin, len(active))
	for i := range active {
		rec := &active[i]
		if cur, ok := bySeat[rec.SeatID]; !ok || rec.CheckinTime.After(cur.CheckinTime) {
			bySeat[rec.SeatID] = rec
		}
	}

	sort.SliceStable(seats, func(i, j int) bool {
		return lessSeatNumber(seats[i].SeatNumber, seats[j].SeatNumber)
	})

	now := s.now()
	infos := make([]protocol.SeatInfo, 0, len(seats))
	for _, seat := range seats {
		no, _ := strconv.Atoi(seat.SeatNumber)
		info := protocol.SeatInfo{SeatNo: no, State: string(model.SeatEmpty)}
		if rec, ok := bySeat[seat.ID]; ok {
			user := rec.UserID
			info.State = string(rec.SeatState())
			info.UserID = &user
			info.RemainSeconds = s.remaining(rec, now)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SeatUpdate builds the SEAT_UPDATE frame for a scope.
func (s *Service) SeatUpdate(ctx context.Context, sc scope.Scope) (*protocol.Frame, error) {
	seats, err := s.SeatsInScope(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("list seats in %s: %w", sc, err)
	}
	return protocol.SeatUpdate(sc, seats), nil
}

func lessSeatNumber(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"studyhall-backend/internal/hub"
	"studyhall-backend/internal/model"
	"studyhall-backend/internal/occupancy"
	"studyhall-backend/internal/protocol"
	"studyhall-backend/internal/scope"
	"studyhall-backend/internal/store"
)

const (
	msgRateLimited   = "rate limit exceeded"
	msgFloorRequired = "floor is required"
	msgInternal      = "internal error"
)

func systemNotice(sc scope.Scope, identity, verb string) *protocol.Frame {
	return protocol.System(sc, fmt.Sprintf("%s %s", identity, verb))
}

// dispatch handles one line. Failures never end the session.
func (s *Session) dispatch(ctx context.Context, line []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.deps.Metrics.Rejected("panic")
			s.log.Error("recovered from panic in handler",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	if !s.limiter.Allow() {
		s.deps.Metrics.Rejected("rate")
		s.reply(protocol.Error(msgRateLimited))
		return
	}

	msg, err := protocol.Decode(line)
	if err != nil {
		reason := "parse"
		switch {
		case errors.Is(err, protocol.ErrMissingType):
			reason = "missing_type"
		case errors.Is(err, protocol.ErrUnknownType):
			reason = "unknown_type"
		}
		s.deps.Metrics.Rejected(reason)
		s.log.Debug("ignoring malformed line", zap.String("reason", reason), zap.Error(err))
		return
	}
	s.deps.Metrics.Received(string(msg.Kind()))

	switch m := msg.(type) {
	case *protocol.Join:
		s.handleJoin(ctx, m)
	case *protocol.Chat:
		s.handleChat(ctx, m)
	case *protocol.SeatCommand:
		s.handleSeatCommand(ctx, m)
	case *protocol.SensorData:
		s.handleSensorData(ctx, m)
	case *protocol.SeatStatusRequest:
		s.handleSeatStatus(ctx, m)
	default:
		s.log.Warn("no handler for message", zap.String("type", string(msg.Kind())))
	}
}

func (s *Session) reply(f *protocol.Frame) {
	if err := s.deps.Hub.Unicast(s, f); err != nil {
		s.log.Debug("reply not delivered", zap.String("type", string(f.Type)), zap.Error(err))
	}
}

func (s *Session) broadcast(f *protocol.Frame, exclude hub.Client) {
	if _, err := s.deps.Hub.Broadcast(f, exclude); err != nil {
		s.log.Warn("broadcast failed", zap.String("type", string(f.Type)), zap.Error(err))
	}
}

// resolve backfills the scope from the session. ok is false when neither the
// message nor the session supplies a floor.
func (s *Session) resolve(h *protocol.Header) (scope.Scope, bool) {
	sc, joined := s.Scope()
	if h.Floor == nil && !joined {
		return scope.Scope{}, false
	}
	return h.ScopeOr(sc), true
}

func (s *Session) handleJoin(ctx context.Context, m *protocol.Join) {
	sc := m.ScopeOr(scope.New(scope.NoFloor, scope.ZoneNone))
	identity := m.SenderOr("")
	role := m.RoleOr(string(model.RoleUser))

	s.mu.Lock()
	prev, wasJoined, prevIdentity := s.scope, s.joined, s.identity
	s.joined, s.scope, s.identity, s.role = true, sc, identity, role
	s.mu.Unlock()

	if wasJoined && prev != sc {
		s.broadcast(systemNotice(prev, prevIdentity, "left"), s)
	}
	s.log.Info("client joined",
		zap.Stringer("scope", sc), zap.String("identity", identity), zap.String("role", role))
	s.broadcast(systemNotice(sc, identity, "entered"), s)

	if sc.Floor <= 0 {
		return
	}
	if f, err := s.deps.Occupancy.SeatUpdate(ctx, sc); err != nil {
		s.log.Error("failed to load seats for join", zap.Stringer("scope", sc), zap.Error(err))
	} else {
		s.reply(f)
	}
	if snap, ok := s.deps.Sensors.Latest(sc); ok {
		s.reply(snap.Frame())
	}
}

func (s *Session) handleChat(ctx context.Context, m *protocol.Chat) {
	kind := m.Kind()
	sender := m.SenderOr(s.Identity())
	role := m.RoleOr(s.Role())
	sc, ok := s.resolve(&m.Header)

	if ok && s.deps.Chat != nil {
		entry := store.ChatEntry{
			Scope:   sc,
			Role:    role,
			Sender:  sender,
			Message: *m.Msg,
			Admin:   kind == protocol.TypeAdminChat,
		}
		if err := s.deps.Chat.AppendChatLog(ctx, entry); err != nil {
			s.log.Warn("failed to persist chat message", zap.Error(err))
		}
	}

	var f *protocol.Frame
	if ok {
		f = protocol.ChatFrame(kind, sc, role, sender, *m.Msg)
	} else {
		f = &protocol.Frame{Type: kind, Role: role, Sender: sender, Msg: *m.Msg}
	}
	s.broadcast(f, nil)
}

func (s *Session) handleSeatCommand(ctx context.Context, m *protocol.SeatCommand) {
	sc, ok := s.resolve(&m.Header)
	if !ok {
		s.reply(protocol.Error(msgFloorRequired))
		return
	}
	seatNo := *m.SeatNo
	userID := m.UserOr(s.Identity())

	var err error
	occ := s.deps.Occupancy
	switch m.Kind() {
	case protocol.TypeCheckin:
		_, err = occ.Checkin(ctx, sc, seatNo, userID)
	case protocol.TypeAwayStart:
		_, err = occ.StartAway(ctx, sc, seatNo, userID)
	case protocol.TypeAwayBack:
		_, err = occ.BackFromAway(ctx, sc, seatNo, userID)
	case protocol.TypeCheckout:
		_, err = occ.Checkout(ctx, sc, seatNo, userID)
	}

	if err != nil {
		if occupancy.IsDomainError(err) {
			s.reply(protocol.Error(err.Error()).In(sc))
			return
		}
		s.log.Error("seat transition failed",
			zap.String("type", string(m.Kind())), zap.Stringer("scope", sc),
			zap.Int("seat", seatNo), zap.String("user", userID), zap.Error(err))
		s.reply(protocol.Error(msgInternal))
		return
	}

	f, err := occ.SeatUpdate(ctx, sc)
	if err != nil {
		s.log.Error("failed to load seats after transition", zap.Stringer("scope", sc), zap.Error(err))
		return
	}
	s.broadcast(f, nil)
}

func (s *Session) handleSensorData(ctx context.Context, m *protocol.SensorData) {
	sc, ok := s.resolve(&m.Header)
	if !ok {
		s.deps.Metrics.Rejected("scope_missing")
		s.log.Warn("dropping sensor data without floor")
		return
	}
	sender := m.SenderOr(s.Identity())

	snap := s.deps.Sensors.Ingest(ctx, sc, *m.Temp, *m.CO2, *m.Lux, sender)
	s.broadcast(snap.Frame(), nil)
}

func (s *Session) handleSeatStatus(ctx context.Context, m *protocol.SeatStatusRequest) {
	sc, ok := s.resolve(&m.Header)
	if !ok {
		s.reply(protocol.Error(msgFloorRequired))
		return
	}
	f, err := s.deps.Occupancy.SeatUpdate(ctx, sc)
	if err != nil {
		s.log.Error("failed to load seats", zap.Stringer("scope", sc), zap.Error(err))
		s.reply(protocol.Error(msgInternal))
		return
	}
	s.reply(f)
}

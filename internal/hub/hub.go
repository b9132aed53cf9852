// Package hub keeps the registry of live connections and fans server frames
// out to them.
//
// A frame is addressed to a scope: a client receives it when its joined floor
// equals the frame's floor and either both have no zone or both have the same
// zone. ADMIN_CHAT is the exception and goes to every client whose role is
// ADMIN, wherever it joined. Delivery is best effort. A client that cannot
// take a frame is skipped; it is removed when its own session ends, not here.
package hub

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"studyhall-backend/internal/metrics"
	"studyhall-backend/internal/model"
	"studyhall-backend/internal/protocol"
	"studyhall-backend/internal/scope"
)

// ErrScopeMissing is returned when a scoped frame has no floor.
var ErrScopeMissing = errors.New("broadcast frame has no floor")

// Client is the hub's view of a connection.
type Client interface {
	ID() string
	// Scope returns the joined scope; ok is false before JOIN.
	Scope() (sc scope.Scope, ok bool)
	Role() string
	// Send queues an encoded frame without blocking.
	Send(line []byte) error
}

// Hub is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client

	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates an empty hub.
func New(log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]Client),
		log:     log,
		metrics: m,
	}
}

// Register adds c to the registry.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	_, existed := h.clients[c.ID()]
	h.clients[c.ID()] = c
	h.mu.Unlock()
	if !existed {
		h.metrics.ConnectionOpened()
	}
}

// Deregister removes c. It is a no-op for an unknown client.
func (h *Hub) Deregister(c Client) {
	h.mu.Lock()
	_, existed := h.clients[c.ID()]
	delete(h.clients, c.ID())
	h.mu.Unlock()
	if existed {
		h.metrics.ConnectionClosed()
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast delivers f to its audience, skipping exclude when non-nil, and
// returns the number of clients that accepted it.
func (h *Hub) Broadcast(f *protocol.Frame, exclude Client) (int, error) {
	var match func(Client) bool
	if f.Type == protocol.TypeAdminChat {
		match = func(c Client) bool {
			return strings.EqualFold(c.Role(), string(model.RoleAdmin))
		}
	} else {
		target, ok := f.Scope()
		if !ok {
			h.log.Warn("dropping broadcast without floor", zap.String("type", string(f.Type)))
			return 0, ErrScopeMissing
		}
		match = func(c Client) bool {
			sc, joined := c.Scope()
			return joined && sc.Matches(target)
		}
	}

	line, err := f.Encode()
	if err != nil {
		return 0, err
	}

	var excludeID string
	if exclude != nil {
		excludeID = exclude.ID()
	}

	delivered := 0
	for _, c := range h.snapshot() {
		if c.ID() == excludeID || !match(c) {
			continue
		}
		if err := c.Send(line); err != nil {
			h.metrics.Dropped()
			h.log.Debug("broadcast not delivered",
				zap.String("client", c.ID()), zap.String("type", string(f.Type)), zap.Error(err))
			continue
		}
		delivered++
	}
	h.metrics.Delivered(delivered)
	return delivered, nil
}

// Unicast sends f to c only.
func (h *Hub) Unicast(c Client, f *protocol.Frame) error {
	line, err := f.Encode()
	if err != nil {
		return err
	}
	if err := c.Send(line); err != nil {
		h.metrics.Dropped()
		return err
	}
	h.metrics.Delivered(1)
	return nil
}

// Package session runs one client connection: a receive loop that decodes
// protocol lines and dispatches them in arrival order, and a writer that
// drains a bounded outbound queue.
package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"studyhall-backend/config"
	"studyhall-backend/internal/hub"
	"studyhall-backend/internal/metrics"
	"studyhall-backend/internal/occupancy"
	"studyhall-backend/internal/scope"
	"studyhall-backend/internal/sensor"
	"studyhall-backend/internal/store"
	"studyhall-backend/internal/transport"
)

var (
	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrClosed is returned by Send after the session has been closed.
	ErrClosed = errors.New("session closed")
)

// ChatLog persists chat lines.
type ChatLog interface {
	AppendChatLog(ctx context.Context, entry store.ChatEntry) error
}

// Deps are the shared components a session dispatches to.
type Deps struct {
	Hub       *hub.Hub
	Occupancy *occupancy.Service
	Sensors   *sensor.Cache
	Chat      ChatLog
	Log       *zap.Logger
	Metrics   *metrics.Metrics
}

// Options tune a single connection.
type Options struct {
	SendBuffer     int
	MessagesPerSec float64
	MessageBurst   int
}

// OptionsFromConfig converts the socket config section.
func OptionsFromConfig(cfg config.SocketConfig) Options {
	return Options{
		SendBuffer:     cfg.SendBuffer,
		MessagesPerSec: cfg.MessagesPerSec,
		MessageBurst:   cfg.MessageBurst,
	}
}

// Session is one live connection. It implements hub.Client.
type Session struct {
	id      string
	conn    transport.Conn
	deps    Deps
	log     *zap.Logger
	limiter *rate.Limiter

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	joined   bool
	scope    scope.Scope
	identity string
	role     string
}

// New creates a session for conn. Run must be called to start it.
func New(conn transport.Conn, deps Deps, opts Options) *Session {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	limit := rate.Inf
	if opts.MessagesPerSec > 0 {
		limit = rate.Limit(opts.MessagesPerSec)
	}
	burst := opts.MessageBurst
	if burst <= 0 {
		burst = 1
	}

	id := uuid.NewString()
	return &Session{
		id:      id,
		conn:    conn,
		deps:    deps,
		log:     deps.Log.With(zap.String("session", id), zap.String("remote", conn.RemoteAddr())),
		limiter: rate.NewLimiter(limit, burst),
		out:     make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		scope:   scope.New(scope.NoFloor, scope.ZoneNone),
	}
}

func (s *Session) ID() string { return s.id }

// Scope returns the joined scope; ok is false until JOIN.
func (s *Session) Scope() (scope.Scope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope, s.joined
}

func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Identity returns the sender id given at JOIN.
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Send queues line for the writer without blocking.
func (s *Session) Send(line []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.out <- line:
		return nil
	case <-s.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close closes the connection, which unblocks Run. It is safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.log.Debug("close connection", zap.Error(err))
		}
	})
}

func (s *Session) writeLoop() {
	for {
		select {
		case line := <-s.out:
			if err := s.conn.WriteLine(line); err != nil {
				s.log.Debug("write failed, closing connection", zap.Error(err))
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// Run registers the session, processes lines until the connection ends or ctx
// is cancelled, then announces the departure and deregisters. It returns the
// read error unless the stream ended normally.
func (s *Session) Run(ctx context.Context) error {
	s.deps.Hub.Register(s)
	s.log.Info("client connected")

	go s.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	var runErr error
	defer func() {
		s.leave()
		s.Close()
		s.deps.Hub.Deregister(s)
		s.log.Info("client disconnected", zap.Error(runErr))
	}()

	for {
		line, err := s.conn.ReadLine()
		if errors.Is(err, transport.ErrLineTooLong) {
			s.deps.Metrics.Rejected("too_long")
			s.log.Warn("dropping oversized line")
			continue
		}
		if err != nil {
			if !isClosed(err) {
				runErr = err
			}
			break
		}
		s.dispatch(ctx, line)
	}
	return runErr
}

// leave announces the departure to the joined scope.
func (s *Session) leave() {
	sc, joined := s.Scope()
	if !joined {
		return
	}
	s.broadcast(systemNotice(sc, s.Identity(), "left"), s)
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

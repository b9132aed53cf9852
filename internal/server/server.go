// Package server accepts client connections over TCP and WebSocket and runs
// one session per connection.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studyhall-backend/config"
	"studyhall-backend/internal/session"
	"studyhall-backend/internal/transport"
)

// Server owns the listener and every live session.
type Server struct {
	cfg  config.SocketConfig
	deps session.Deps
	opts session.Options
	log  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	sessions map[*session.Session]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// New creates a server. deps are shared by every session it starts.
func New(cfg config.SocketConfig, deps session.Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		deps:     deps,
		opts:     session.OptionsFromConfig(cfg),
		log:      log.Named("server"),
		sessions: make(map[*session.Session]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ln.Close()
		return net.ErrClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("socket server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else if backoff *= 2; backoff > time.Second {
					backoff = time.Second
				}
				s.log.Warn("accept error, retrying", zap.Duration("backoff", backoff), zap.Error(err))
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0

		conn := transport.NewLineConn(c, s.cfg.MaxLineBytes, s.cfg.WriteTimeout)
		if !s.start(ctx, conn, true) {
			conn.Close()
		}
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// start runs a session for conn, in a new goroutine when async is set. It
// returns false if the server is shutting down.
func (s *Server) start(ctx context.Context, conn transport.Conn, async bool) bool {
	sess := session.New(conn, s.deps, s.opts)

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	run := func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess)
			s.mu.Unlock()
		}()
		if err := sess.Run(ctx); err != nil {
			s.log.Debug("session ended with error", zap.String("session", sess.ID()), zap.Error(err))
		}
	}
	if async {
		go run()
	} else {
		run()
	}
	return true
}

// HandleWebSocket upgrades the request and serves the connection until it
// ends. Each text message is one protocol line.
func (s *Server) HandleWebSocket(c *gin.Context) {
	ws, err := transport.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := transport.NewWebSocketConn(ws, s.cfg.MaxLineBytes, s.cfg.WriteTimeout)
	if !s.start(c.Request.Context(), conn, false) {
		conn.Close()
	}
}

// Shutdown stops accepting, closes every live session and waits for them to
// finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
	live := make([]*session.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		sess.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("socket server stopped", zap.Int("closed_sessions", len(live)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

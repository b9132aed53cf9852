// Package sweeper periodically releases seats that have been AWAY for longer
// than the configured threshold and re-broadcasts the affected seat maps.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studyhall-backend/config"
	"studyhall-backend/internal/hub"
	"studyhall-backend/internal/metrics"
	"studyhall-backend/internal/notification"
	"studyhall-backend/internal/occupancy"
	"studyhall-backend/internal/protocol"
)

// Broadcaster delivers a frame to its scope.
type Broadcaster interface {
	Broadcast(f *protocol.Frame, exclude hub.Client) (int, error)
}

// Notifier queues a release notification for the seat's owner.
type Notifier interface {
	Dispatch(job notification.Job) bool
}

// Service runs the expiry sweep.
type Service struct {
	cfg       config.SweeperConfig
	occupancy *occupancy.Service
	hub       Broadcaster
	notifier  Notifier
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// NewService creates a sweeper. notifier may be nil.
func NewService(cfg config.SweeperConfig, occ *occupancy.Service, b Broadcaster, notifier Notifier, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		occupancy: occ,
		hub:       b,
		notifier:  notifier,
		log:       log.Named("sweeper"),
		metrics:   m,
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("sweeper is disabled, not starting")
		return
	}
	s.log.Info("starting sweeper", zap.Duration("interval", s.cfg.Interval))

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce expires stale AWAY seats, broadcasts one SEAT_UPDATE per affected
// scope and queues release notifications. It returns the number of released
// seats. A tick that has started is not interrupted by ctx.
func (s *Service) SweepOnce(ctx context.Context) int {
	ctx = context.WithoutCancel(ctx)

	exp, err := s.occupancy.ExpireAway(ctx)
	if err != nil {
		s.log.Error("expiry pass incomplete", zap.Error(err))
	}
	if len(exp.Released) == 0 {
		return 0
	}
	s.metrics.Swept(len(exp.Released))
	s.log.Info("released away seats",
		zap.Int("seats", len(exp.Released)), zap.Int("scopes", len(exp.Scopes)))

	for _, sc := range exp.Scopes {
		f, err := s.occupancy.SeatUpdate(ctx, sc)
		if err != nil {
			s.log.Error("failed to build seat update", zap.Stringer("scope", sc), zap.Error(err))
			continue
		}
		if _, err := s.hub.Broadcast(f, nil); err != nil {
			s.log.Warn("seat update broadcast failed", zap.Stringer("scope", sc), zap.Error(err))
		}
	}

	if s.notifier != nil {
		for _, rec := range exp.Released {
			s.notifier.Dispatch(notification.JobFromCheckin(rec))
		}
	}
	return len(exp.Released)
}

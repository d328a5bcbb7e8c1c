// Package scheduler runs the periodic sweeps that keep bookings, match
// requests and notifications moving without a client request.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type BookingSweeper interface {
	ReleaseExpiredHolds(ctx context.Context) (int, error)
	CompleteElapsed(ctx context.Context) (int64, error)
}

type MatchSweeper interface {
	ExpireElapsed(ctx context.Context) (int64, error)
}

type NotificationSweeper interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

type Config struct {
	Interval              time.Duration
	NotificationRetention time.Duration
}

type Scheduler struct {
	bookings      BookingSweeper
	matches       MatchSweeper
	notifications NotificationSweeper
	cfg           Config
	log           *zap.Logger
}

func New(bookings BookingSweeper, matches MatchSweeper, notifications NotificationSweeper, cfg Config, log *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Scheduler{
		bookings:      bookings,
		matches:       matches,
		notifications: notifications,
		cfg:           cfg,
		log:           log,
	}
}

// Result counts what a single sweep changed.
type Result struct {
	HoldsReleased        int
	BookingsCompleted    int64
	MatchesExpired       int64
	NotificationsDeleted int64
}

// RunOnce runs every sweep once. A failing sweep is logged and does not
// stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) Result {
	start := time.Now()
	var res Result
	var err error

	if s.bookings != nil {
		if res.HoldsReleased, err = s.bookings.ReleaseExpiredHolds(ctx); err != nil {
			s.log.Error("release expired holds", zap.Error(err))
		}
		if res.BookingsCompleted, err = s.bookings.CompleteElapsed(ctx); err != nil {
			s.log.Error("complete elapsed bookings", zap.Error(err))
		}
	}
	if s.matches != nil {
		if res.MatchesExpired, err = s.matches.ExpireElapsed(ctx); err != nil {
			s.log.Error("expire match requests", zap.Error(err))
		}
	}
	if s.notifications != nil && s.cfg.NotificationRetention > 0 {
		if res.NotificationsDeleted, err = s.notifications.Cleanup(ctx, s.cfg.NotificationRetention); err != nil {
			s.log.Error("cleanup notifications", zap.Error(err))
		}
	}

	s.log.Debug("sweep completed",
		zap.Int("holds_released", res.HoldsReleased),
		zap.Int64("bookings_completed", res.BookingsCompleted),
		zap.Int64("matches_expired", res.MatchesExpired),
		zap.Int64("notifications_deleted", res.NotificationsDeleted),
		zap.Duration("took", time.Since(start)),
	)
	return res
}

// Start sweeps on every tick until ctx is done. The returned channel is
// closed once the loop has exited.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.log.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-ctx.Done():
				s.log.Info("scheduler stopped")
				return
			}
		}
	}()
	return done
}

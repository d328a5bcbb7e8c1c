package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sarvangi2609/criczz/internal/config"
	"github.com/sarvangi2609/criczz/internal/database"
	"github.com/sarvangi2609/criczz/internal/domain/booking"
	"github.com/sarvangi2609/criczz/internal/domain/catalog"
	"github.com/sarvangi2609/criczz/internal/domain/identity"
	"github.com/sarvangi2609/criczz/internal/domain/match"
	"github.com/sarvangi2609/criczz/internal/domain/notification"
	"github.com/sarvangi2609/criczz/internal/pkg/logger"
	"github.com/sarvangi2609/criczz/internal/scheduler"
)

func main() {
	loop := flag.Bool("loop", false, "keep sweeping every SWEEP_INTERVAL until interrupted")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zlog, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.Connect(cfg.DB.URL, zlog)
	if err != nil {
		zlog.Fatal("db connect failed", zap.Error(err))
	}

	users := identity.NewRepository(db)
	boxes := catalog.NewRepository(db)
	// Sweeps only write records; live push belongs to the api process.
	notifications := notification.NewService(notification.NewRepository(db), nil, zlog.Named("notification"))

	bookings := booking.NewService(booking.NewRepository(db), boxes, users, notifications, booking.Options{
		HoldTTL:  cfg.Business.HoldTTL,
		Location: cfg.Location(),
	}, zlog.Named("booking"))
	matches := match.NewService(match.NewRepository(db), users, boxes, nil, nil, notifications, match.Policy{
		Location: cfg.Location(),
	}, zlog.Named("match"))

	s := scheduler.New(bookings, matches, notifications, scheduler.Config{
		Interval:              cfg.Sweep.Interval,
		NotificationRetention: cfg.Sweep.NotificationRetention,
	}, zlog.Named("scheduler"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *loop {
		<-s.Start(ctx)
		return
	}

	res := s.RunOnce(ctx)
	zlog.Info("sweep completed",
		zap.Int("holds_released", res.HoldsReleased),
		zap.Int64("bookings_completed", res.BookingsCompleted),
		zap.Int64("matches_expired", res.MatchesExpired),
		zap.Int64("notifications_deleted", res.NotificationsDeleted),
	)
}

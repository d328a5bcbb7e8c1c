package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sarvangi2609/criczz/internal/config"
	"github.com/sarvangi2609/criczz/internal/database"
	"github.com/sarvangi2609/criczz/internal/domain/booking"
	"github.com/sarvangi2609/criczz/internal/domain/catalog"
	"github.com/sarvangi2609/criczz/internal/domain/chat"
	"github.com/sarvangi2609/criczz/internal/domain/identity"
	"github.com/sarvangi2609/criczz/internal/domain/match"
	"github.com/sarvangi2609/criczz/internal/domain/notification"
	"github.com/sarvangi2609/criczz/internal/domain/payment"
	"github.com/sarvangi2609/criczz/internal/domain/realtime"
	"github.com/sarvangi2609/criczz/internal/middleware"
	jwtsvc "github.com/sarvangi2609/criczz/internal/pkg/jwt"
	"github.com/sarvangi2609/criczz/internal/pkg/logger"
	"github.com/sarvangi2609/criczz/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DB.URL, zlog)
	if err != nil {
		zlog.Fatal("db connect failed", zap.Error(err))
	}
	if err := migrate(db); err != nil {
		zlog.Fatal("auto migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(zlog.Named("realtime"))
	if cfg.Redis.URL != "" {
		client, err := realtime.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			zlog.Fatal("redis connect failed", zap.Error(err))
		}
		defer client.Close()

		relay := realtime.NewRedisRelay(client, cfg.Redis.Channel, zlog.Named("relay"))
		hub.SetRelay(ctx, relay)
		go func() {
			if err := relay.Run(ctx, hub.ApplyRemote); err != nil {
				zlog.Error("relay stopped", zap.Error(err))
			}
		}()
	}

	loc := cfg.Location()
	tokens := jwtsvc.New(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)

	userRepo := identity.NewRepository(db)
	boxRepo := catalog.NewRepository(db)
	bookingRepo := booking.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	matchRepo := match.NewRepository(db)

	notificationService := notification.NewService(notification.NewRepository(db), hub, zlog.Named("notification"))

	bookingService := booking.NewService(bookingRepo, boxRepo, userRepo, notificationService, booking.Options{
		Pricing: booking.Pricing{
			CommissionPercent: cfg.Business.CommissionPercent,
			TaxPercent:        cfg.Business.TaxPercent,
		},
		HoldTTL:            cfg.Business.HoldTTL,
		CancellationWindow: cfg.Business.CancellationWindow,
		Location:           loc,
	}, zlog.Named("booking"))

	gateway := payment.NewRazorpayClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.Timeout)
	paymentService := payment.NewService(db, paymentRepo, bookingRepo, boxRepo, gateway, notificationService, payment.Options{
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Currency:      cfg.Gateway.Currency,
		Timeout:       cfg.Gateway.Timeout,
	}, zlog.Named("payment"))
	bookingService.SetRefundRequester(paymentService)

	matchService := match.NewService(matchRepo, userRepo, boxRepo, bookingService, hub, notificationService, match.Policy{
		ReopenOnWithdraw: cfg.Business.ReopenOnWithdraw,
		BookOnClose:      cfg.Business.BookOnClose,
		Location:         loc,
	}, zlog.Named("match"))

	sweeps := scheduler.New(bookingService, matchService, notificationService, scheduler.Config{
		Interval:              cfg.Sweep.Interval,
		NotificationRetention: cfg.Sweep.NotificationRetention,
	}, zlog.Named("scheduler"))
	sweepsDone := sweeps.Start(ctx)

	catalogHandler := catalog.NewHandler(boxRepo)
	bookingHandler := booking.NewHandler(bookingService)
	paymentHandler := payment.NewHandler(paymentService)
	matchHandler := match.NewHandler(matchService)
	notificationHandler := notification.NewHandler(notificationService)
	chatService := chat.NewService(chat.NewRepository(db), matchService, userRepo, hub, zlog.Named("chat"))
	chatHandler := chat.NewHandler(chatService)
	wsHandler := realtime.NewWSHandler(hub, tokens, realtime.TopicPolicy{
		Matches: matchService,
		Log:     zlog.Named("topics"),
	}, chatService, zlog.Named("ws"))

	r := gin.New()
	r.Use(gin.Logger(), middleware.ErrorLogger(zlog), middleware.CORS(cfg.Server.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	wsHandler.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	{
		// public
		catalogHandler.RegisterPublicRoutes(v1)
		bookingHandler.RegisterPublicRoutes(v1)
		matchHandler.RegisterPublicRoutes(v1)
		paymentHandler.RegisterWebhookRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(tokens))
		{
			catalogHandler.RegisterProtectedRoutes(protected)
			bookingHandler.RegisterProtectedRoutes(protected)
			paymentHandler.RegisterProtectedRoutes(protected)
			matchHandler.RegisterProtectedRoutes(protected)
			notificationHandler.RegisterRoutes(protected)
			chatHandler.RegisterRoutes(protected)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("http server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zlog.Info("shutdown signal received")
	case err := <-errCh:
		zlog.Error("http server failed", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http server shutdown", zap.Error(err))
	}
	<-sweepsDone

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zlog.Info("server stopped")
}

func migrate(db *gorm.DB) error {
	for _, fn := range []func(*gorm.DB) error{
		identity.AutoMigrate,
		catalog.AutoMigrate,
		booking.AutoMigrate,
		payment.AutoMigrate,
		match.AutoMigrate,
		notification.AutoMigrate,
		chat.AutoMigrate,
	} {
		if err := fn(db); err != nil {
			return err
		}
	}
	return nil
}

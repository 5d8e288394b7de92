package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/sponnect/sponnect/internal/api/http"
	"github.com/sponnect/sponnect/internal/application/campaign"
	"github.com/sponnect/sponnect/internal/application/negotiation"
	"github.com/sponnect/sponnect/internal/application/notification"
	"github.com/sponnect/sponnect/internal/application/progress"
	"github.com/sponnect/sponnect/internal/application/settlement"
	"github.com/sponnect/sponnect/internal/config"
	"github.com/sponnect/sponnect/internal/infrastructure/events"
	"github.com/sponnect/sponnect/internal/infrastructure/identity"
	"github.com/sponnect/sponnect/internal/infrastructure/postgres"
	"github.com/sponnect/sponnect/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	logger = logger.Level(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}

	// repositories
	adRequestRepo := postgres.NewAdRequestRepository(pool)
	progressRepo := postgres.NewProgressRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	campaignRepo := postgres.NewCampaignRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	transactor := postgres.NewTransactor(pool)

	// infrastructure
	sseHub := sse.NewHub(logger)
	sseHub.Start(ctx)
	dispatcher := events.NewDispatcher(cfg.EventBuffer, logger)
	verifier, err := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("identity error")
	}

	// services
	notificationSvc, err := notification.NewService(sseHub, adRequestRepo, cfg.NotificationRules, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("notification rules error")
	}
	dispatcher.SubscribeAll(notificationSvc.Handle)
	dispatcher.SubscribeMetrics()

	negotiationSvc := negotiation.NewService(adRequestRepo, campaignRepo, userRepo, transactor, dispatcher, logger)
	progressSvc := progress.NewService(progressRepo, adRequestRepo, userRepo, transactor, dispatcher, logger)
	settlementSvc := settlement.NewService(paymentRepo, progressRepo, adRequestRepo, userRepo, transactor, dispatcher, cfg.PlatformFeeRate, logger)
	campaignSvc := campaign.NewService(campaignRepo, adRequestRepo, progressRepo, paymentRepo, transactor, dispatcher, logger)

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(ctx)
	}()

	// API server
	apiServer := httpapi.NewServer(negotiationSvc, progressSvc, settlementSvc, campaignSvc, sseHub, verifier, logger)

	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: event streams stay open; API routes carry their own timeout
		IdleTimeout: 60 * time.Second,
	}

	// background loops
	if cfg.StaleNegotiationAfter > 0 {
		go runEvery(ctx, cfg.SweepInterval, func(ctx context.Context) {
			n, err := negotiationSvc.ExpireStale(ctx, cfg.StaleNegotiationAfter, cfg.SweepBatchSize)
			if err != nil {
				logger.Error().Err(err).Msg("stale negotiation sweep failed")
				return
			}
			if n > 0 {
				logger.Info().Int("expired", n).Msg("stale negotiations expired")
			}
		})
	}

	reminders := notification.ReminderPolicy{After: cfg.PendingReminderAfter, UrgentAfter: cfg.PendingUrgentAfter}
	go runEvery(ctx, cfg.SweepInterval, func(ctx context.Context) {
		n, err := notificationSvc.SendPendingReminders(ctx, reminders, cfg.SweepBatchSize)
		if err != nil {
			logger.Error().Err(err).Msg("pending reminder sweep failed")
			return
		}
		if n > 0 {
			logger.Info().Int("reminded", n).Msg("pending reminders sent")
		}
	})

	staleNotices := notification.StalePolicy{After: cfg.StaleNoticeAfter, VeryStaleAfter: cfg.VeryStaleNoticeAfter}
	go runEvery(ctx, cfg.SweepInterval, func(ctx context.Context) {
		n, err := notificationSvc.SendStaleNotices(ctx, staleNotices, cfg.SweepBatchSize)
		if err != nil {
			logger.Error().Err(err).Msg("stale notice sweep failed")
			return
		}
		if n > 0 {
			logger.Info().Int("notified", n).Msg("stale negotiation notices sent")
		}
	})

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	<-dispatchDone
}

func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

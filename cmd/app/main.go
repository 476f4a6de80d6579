package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saas-subscription-billing/internal/config"
	"saas-subscription-billing/internal/domain/ports/adapter"
	procadapters "saas-subscription-billing/internal/infra/adapters/processor"
	pg "saas-subscription-billing/internal/infra/db/postgres"
	"saas-subscription-billing/internal/infra/logging"
	"saas-subscription-billing/internal/infra/metrics"
	red "saas-subscription-billing/internal/infra/redis"
	"saas-subscription-billing/internal/infra/sched"
	"saas-subscription-billing/internal/infra/web"
	"saas-subscription-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient)
	couponRepo := pg.NewCouponRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	noteRepo := pg.NewNotificationRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Payment processor ----
	var proc adapter.PaymentProcessor
	var parser web.WebhookParser
	if cfg.Stripe.Enabled() {
		sp := procadapters.NewStripeProcessor(cfg.Stripe, logger)
		proc = sp
		parser = sp
		logger.Info().Str("processor", sp.Name()).Msg("payment processor configured")
	} else {
		proc = procadapters.NewNoopProcessor()
		logger.Warn().Msg("no payment processor configured; checkout will use the manual path")
	}

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(
		planRepo, couponRepo, subRepo, payRepo, userRepo, noteRepo, proc, tm,
		usecase.CheckoutURLs{SuccessURL: cfg.Server.SuccessURL, CancelURL: cfg.Server.CancelURL},
		logger,
	)
	paymentUC := usecase.NewPaymentUseCase(payRepo, subRepo, noteRepo, tm, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, noteRepo, proc, logger)
	planUC := usecase.NewPlanUseCase(planRepo, logger)
	couponUC := usecase.NewCouponUseCase(couponRepo, tm, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, subRepo, payRepo, logger)
	noteUC := usecase.NewNotificationUseCase(noteRepo, logger)
	webhookUC := usecase.NewWebhookUseCase(planRepo, subRepo, payRepo, noteRepo, proc, tm, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth)
	srv := web.NewServer(checkoutUC, paymentUC, subUC, planUC, couponUC, statsUC, noteUC, webhookUC, parser, auth, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Metrics server ----
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	// ---- Background workers ----
	expiryWorker := sched.NewExpiryWorker(1*time.Hour, subUC, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	notifWorker := sched.NewNotificationWorker(12*time.Hour, 3, subUC, noteRepo, redisClient, logger)
	go func() { _ = notifWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MohammedAK1991/street-performers-map-sub000/audit"
	"github.com/MohammedAK1991/street-performers-map-sub000/config"
	"github.com/MohammedAK1991/street-performers-map-sub000/database"
	"github.com/MohammedAK1991/street-performers-map-sub000/directory"
	"github.com/MohammedAK1991/street-performers-map-sub000/handlers"
	"github.com/MohammedAK1991/street-performers-map-sub000/ledger"
	"github.com/MohammedAK1991/street-performers-map-sub000/logger"
	"github.com/MohammedAK1991/street-performers-map-sub000/middleware"
	"github.com/MohammedAK1991/street-performers-map-sub000/notify"
	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
	"github.com/MohammedAK1991/street-performers-map-sub000/tips"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	log := logger.New(os.Getenv("ENVIRONMENT"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(cfg.Environment)
	if envErr != nil {
		log.Debug().Msg("No .env file found")
	}

	if err := config.Validate(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	db, err := database.Initialize(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	ledgerStore := ledger.NewStore(db, log)
	dirStore := directory.NewStore(db, log)
	auditStore := audit.NewStore(db, log)
	hub := notify.NewHub(log)

	svc := tips.NewService(tips.Deps{
		Validator: payments.NewAmountValidator(cfg.Tips.MinTipCents, cfg.Tips.MaxTipCents, cfg.Tips.DefaultCurrency),
		Gateway:   newGateway(cfg, log),
		Ledger:    ledgerStore,
		Directory: dirStore,
		Notifier:  hub,
		Auditor:   auditStore,
		Events:    auditStore,
	}, tips.Config{MaxMessageLength: cfg.Tips.MaxMessageLength}, log)

	h := handlers.NewHandlers(handlers.Deps{
		DB:     db,
		Config: cfg,
		Tips:   svc,
		Ledger: ledgerStore,
		Audit:  auditStore,
		Hub:    hub,
	}, log)

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid TRUSTED_PROXIES")
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	auth := middleware.NewAuth(cfg.JWTSecret, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(h, auth, limiter, trustedProxies, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("environment", cfg.Environment).
			Str("database", cfg.DatabaseURL).
			Bool("fake_gateway", cfg.UseFakeGateway()).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	limiter.Stop()
	hub.Close()
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// newGateway selects the in-process gateway when no processor key is set.
func newGateway(cfg *config.Config, log zerolog.Logger) payments.Gateway {
	fees := payments.FeeSchedule{
		ProcessingRate:  cfg.Tips.ProcessingFeeRate,
		ProcessingFixed: cfg.Tips.ProcessingFeeFixed,
		PlatformRate:    cfg.Tips.PlatformFeeRate,
	}

	if cfg.UseFakeGateway() {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, using fake payment gateway")
		return payments.NewFakeGateway(cfg.Stripe.WebhookSecret, fees)
	}
	return payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		RefreshURL:    cfg.Stripe.ConnectRefreshURL,
		ReturnURL:     cfg.Stripe.ConnectReturnURL,
	}, fees, log)
}

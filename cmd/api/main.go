package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/mortgage-leads/internal/api/router"
	"github.com/wolfman30/mortgage-leads/internal/app/bootstrap"
	appconfig "github.com/wolfman30/mortgage-leads/internal/config"
	"github.com/wolfman30/mortgage-leads/internal/http/handlers"
	"github.com/wolfman30/mortgage-leads/internal/leads"
	"github.com/wolfman30/mortgage-leads/internal/notify"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	started := time.Now()

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting mortgage-leads API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	metricsHandler, leadMetrics := setupMetrics()
	if !cfg.MetricsEnabled {
		metricsHandler = nil
	}

	store := setupStore(ctx, cfg, logger)
	mailer, transport := setupMailer(ctx, cfg, logger)
	logger.Info("mail transport selected", "transport", transport)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	rateCounter, rateBackend := bootstrap.BuildRateCounter(redisClient)
	idempotency, idempotencyBackend := bootstrap.BuildIdempotencyStore(redisClient, cfg)
	logger.Info("perimeter state initialized", "rate_limit", rateBackend, "idempotency", idempotencyBackend)

	notifier := notify.NewService(mailer, notify.Config{
		BusinessEmail: cfg.BusinessEmail,
		BusinessPhone: cfg.BusinessPhone,
	}, logger, leadMetrics)

	leadsService := leads.NewService(store, notifier, leads.ServiceConfig{
		StoreTimeout: cfg.StoreTimeout,
		MailTimeout:  cfg.MailTimeout,
	}, logger, leadMetrics)

	leadsHandler := leads.NewHandler(leadsService, leads.HandlerConfig{
		Production:  cfg.IsProduction(),
		Idempotency: idempotency,
	}, logger, leadMetrics)

	// Setup router
	r := router.New(&router.Config{
		Logger:              logger,
		Production:          cfg.IsProduction(),
		LeadsHandler:        leadsHandler,
		HealthHandler:       handlers.NewHealthHandler(started),
		AdminEnabled:        cfg.AdminSecret != "",
		MetricsHandler:      metricsHandler,
		Metrics:             leadMetrics,
		CORSAllowedOrigins:  cfg.AllowedOrigins(),
		TrustProxy:          cfg.TrustProxy,
		RateCounter:         rateCounter,
		RateLimitWindow:     cfg.RateLimitWindow,
		RateLimitMax:        int64(cfg.RateLimitMax),
		LeadRateLimitWindow: cfg.LeadRateLimitWindow,
		LeadRateLimitMax:    int64(cfg.LeadRateLimitMax),
		MaxBodyBytes:        cfg.MaxBodyBytes,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kevin07696/royalty-service/internal/adapters/postgres"
	"github.com/kevin07696/royalty-service/internal/app"
	"github.com/kevin07696/royalty-service/internal/config"
	"github.com/kevin07696/royalty-service/internal/handlers/jobs"
	"github.com/kevin07696/royalty-service/pkg/middleware"
	"github.com/kevin07696/royalty-service/pkg/observability"
	"github.com/kevin07696/royalty-service/pkg/resilience"
	"github.com/kevin07696/royalty-service/pkg/shutdown"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := app.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting royalty service",
		zap.String("version", "0.1.0"),
		zap.Int("port", cfg.Server.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.String("secret_manager", cfg.Secrets.Backend),
	)
	if cfg.Server.JobSecret == "" {
		logger.Warn("JOB_SECRET not set, every job request will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	go postgres.StartPoolMonitoring(ctx, a.Pool, 30*time.Second, logger)

	checks := map[string]observability.Pinger{"database": a.Pool}
	if a.Redis != nil {
		checks["redis"] = observability.PingFunc(func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() })
	}
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), observability.NewHealthChecker(checks), logger)

	timeouts := resilience.DefaultTimeoutConfig()
	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst, logger)
	defer rateLimiter.Shutdown()

	tracker := shutdown.NewInFlightTracker("jobs", logger)
	mux := http.NewServeMux()
	jobs.NewHandler(a.Jobs, a.Reconciler, timeouts, logger, cfg.Server.JobSecret).
		Routes(mux, observability.HTTPMetrics)

	httpServer := &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.Recovery(logger),
			middleware.Logging(logger),
			rateLimiter.Middleware,
			tracker.Middleware,
			middleware.Timeout(timeouts, logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
		// jobs answer only when the run is done
		WriteTimeout: timeouts.Job + time.Minute,
	}

	go func() {
		logger.Info("HTTP job server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to serve HTTP", zap.Error(err))
			stop()
		}
	}()

	// stopped in reverse: refuse new jobs and wait for running ones, then the
	// servers, then the stores
	sm := shutdown.NewManager(logger, 2*time.Minute)
	sm.RegisterNoErr("stores", a.Close)
	sm.RegisterHTTPServer("metrics_server", metricsServer)
	sm.RegisterHTTPServer("http_server", httpServer)
	sm.Register("jobs", tracker.Shutdown)

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	sm.Shutdown()
}

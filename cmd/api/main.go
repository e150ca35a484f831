package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourierick/solifin/member-service/internal/cache"
	"github.com/yourierick/solifin/member-service/internal/client"
	"github.com/yourierick/solifin/member-service/internal/config"
	"github.com/yourierick/solifin/member-service/internal/db"
	"github.com/yourierick/solifin/member-service/internal/http"
	"github.com/yourierick/solifin/member-service/internal/logging"
	"github.com/yourierick/solifin/member-service/internal/repository"
	"github.com/yourierick/solifin/member-service/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.IsProduction(), cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Member Service...", zap.String("environment", cfg.App.Environment))

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.Database, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Conversion cache is optional
	var rates service.RateCache
	rdb, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, conversions will not be cached", zap.Error(err))
	} else if rdb != nil {
		defer rdb.Close()
		rates = cache.NewConversionCache(rdb, cfg.Redis.RateTTL)
		logger.Info("Conversion cache enabled", zap.String("addr", cfg.Redis.Addr()))
	}

	// Initialize repositories
	logRepo := repository.NewRenewalLogRepository(pool)

	// Initialize clients
	solifinClient := client.NewSolifinClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)

	// Initialize services
	feeResolver := service.NewFeeResolver(solifinClient, rates, logger)
	renewalService := service.NewRenewalService(cfg, solifinClient, feeResolver, logRepo, logger)
	referralService := service.NewReferralService(solifinClient, logger)

	scheduler, err := service.StartRetentionScheduler(logRepo, cfg.Renewal.LogRetention, cfg.Renewal.PurgeInterval, logger)
	if err != nil {
		logger.Fatal("Failed to start retention scheduler", zap.Error(err))
	}

	// Initialize HTTP server
	server := http.NewServer(cfg, pool, renewalService, referralService, logger)
	srv := &nethttp.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error("Scheduler shutdown failed", zap.Error(err))
	}

	logger.Info("Server exited")
}

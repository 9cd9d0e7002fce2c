package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/motion-classifier/internal/analysis"
	"github.com/ZanzyTHEbar/motion-classifier/internal/cache"
	"github.com/ZanzyTHEbar/motion-classifier/internal/config"
	"github.com/ZanzyTHEbar/motion-classifier/internal/database"
	"github.com/ZanzyTHEbar/motion-classifier/internal/errors"
	"github.com/ZanzyTHEbar/motion-classifier/internal/monitoring"
	"github.com/ZanzyTHEbar/motion-classifier/internal/ratelimit"
)

// @title Motion Classifier API
// @version 1.0
// @description Binary activity classification from windows of accelerometer and gyroscope samples.
// @BasePath /

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging setup
	appLogger := monitoring.NewLogger()
	appLogger.SetLevel(monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(appLogger.Logger)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Artifacts are loaded once and validated against the feature schema
	// before the server accepts traffic
	artifacts := analysis.NewArtifactStore(cfg.ModelDir)
	scoring, err := artifacts.LoadScoringContext(cfg.ModelVersion)
	if err != nil {
		appErr := errors.ToAppError(err)
		slog.Error("Failed to load scoring artifacts",
			"category", appErr.Category,
			"model_dir", cfg.ModelDir,
			"model_version", cfg.ModelVersion,
			"error", err)
		os.Exit(1)
	}

	analyzer, err := analysis.NewAnalyzer(cfg.WindowSize, scoring)
	if err != nil {
		slog.Error("Failed to create analyzer", "error", err)
		os.Exit(1)
	}
	slog.Info("Scoring context loaded",
		"model_version", scoring.Version(),
		"features", len(scoring.Schema()),
		"window_size", analyzer.WindowSize())

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer errors.SafeClose(db, "database")

	appMetrics := monitoring.NewMetrics()

	redisClient, err := ratelimit.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, falling back to in-memory rate limiting", "error", err)
	}
	defer errors.SafeClose(redisClient, "redis")

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.IPLimitPerMin = cfg.RateLimitPerMin
	limiter := ratelimit.NewRateLimiter(redisClient, limiterConfig, appMetrics)
	defer limiter.Close()

	var respCache *cache.Cache
	if cfg.CacheEnabled() {
		respCache = cache.NewCache(cfg.CacheTTL)
		defer respCache.Close()
	}

	r := newRouter(server{
		cfg:      cfg,
		analyzer: analyzer,
		db:       db,
		redis:    redisClient,
		limiter:  limiter,
		cache:    respCache,
		metrics:  appMetrics,
		logger:   appLogger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

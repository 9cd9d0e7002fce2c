package main

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/motion-classifier/docs"
	"github.com/ZanzyTHEbar/motion-classifier/internal/analysis"
	"github.com/ZanzyTHEbar/motion-classifier/internal/cache"
	"github.com/ZanzyTHEbar/motion-classifier/internal/config"
	"github.com/ZanzyTHEbar/motion-classifier/internal/database"
	"github.com/ZanzyTHEbar/motion-classifier/internal/errors"
	"github.com/ZanzyTHEbar/motion-classifier/internal/handlers"
	"github.com/ZanzyTHEbar/motion-classifier/internal/middleware"
	"github.com/ZanzyTHEbar/motion-classifier/internal/monitoring"
	"github.com/ZanzyTHEbar/motion-classifier/internal/ratelimit"
	"github.com/ZanzyTHEbar/motion-classifier/internal/security"
)

// server bundles everything the router needs. db, redis, limiter and cache
// are optional.
type server struct {
	cfg      config.Config
	analyzer *analysis.Analyzer
	db       *database.DB
	redis    *ratelimit.RedisClient
	limiter  *ratelimit.RateLimiter
	cache    *cache.Cache
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
}

func newRouter(s server) *gin.Engine {
	r := gin.New()

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.MaxBodyBytes = s.cfg.MaxBodyBytes
	securityConfig.AllowedOrigins = s.cfg.AllowedOrigins
	securityConfig.EnableHSTS = s.cfg.EnableHSTS
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)

	if err := r.SetTrustedProxies(securityConfig.TrustedProxies); err != nil {
		slog.Warn("Invalid trusted proxies", "error", err)
	}

	r.Use(errors.RecoveryHandler())
	r.Use(monitoring.RequestIDMiddleware())
	r.Use(securityMiddleware.CORS())

	// Monitoring wraps everything below so rejected requests are counted too
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger, s.cfg.MaxBodyBytes))
	r.Use(errors.ErrorHandler())

	compression := middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())
	r.Use(compression.Handler())

	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.LimitBody)
	r.Use(securityMiddleware.ValidateContentType)

	var guard []gin.HandlerFunc
	stats := map[string]handlers.StatsFunc{"compression": compression.GetStats}

	if s.limiter != nil {
		guard = append(guard, s.limiter.IPRateLimitMiddleware())
		stats["rate_limiter"] = s.limiter.GetStats
	}

	if s.cache != nil {
		namespace := ""
		if sc := s.analyzer.Scoring(); sc != nil {
			namespace = sc.Version()
		}
		guard = append(guard, s.cache.Middleware(s.metrics, namespace, "/predict", "/features"))
		stats["cache"] = s.cache.Stats
	}

	opts := handlers.Options{
		Analyzer:           s.analyzer,
		Metrics:            s.metrics,
		Logger:             s.logger,
		PersistPredictions: s.cfg.PersistPredictions,
		Stats:              stats,
	}
	if s.redis != nil {
		opts.Redis = s.redis
	}
	if s.db != nil {
		opts.Store = database.NewRepository(s.db)
		stats["database_pool"] = s.db.GetPoolStats
	}

	handlers.New(opts).Register(r, guard...)

	r.GET("/metrics", gin.WrapH(s.metrics.PrometheusHandler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	slog.Info("Router initialized",
		"rate_limit", s.limiter != nil,
		"cache", s.cache != nil,
		"storage", s.db != nil,
		"request_timeout", securityConfig.RequestTimeout.String(),
		"started", time.Now().Format(time.RFC3339))

	return r
}

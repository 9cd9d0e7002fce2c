// Package handlers exposes the motion classifier over HTTP.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/motion-classifier/internal/analysis"
	"github.com/ZanzyTHEbar/motion-classifier/internal/database"
	"github.com/ZanzyTHEbar/motion-classifier/internal/errors"
	"github.com/ZanzyTHEbar/motion-classifier/internal/monitoring"
	"github.com/ZanzyTHEbar/motion-classifier/internal/resilience"
	"github.com/ZanzyTHEbar/motion-classifier/internal/types"
)

// Version is the API version reported by /health
const Version = "1.0.0"

const (
	// MaxBatchSize caps the readings accepted by one ingest call
	MaxBatchSize = 1000

	defaultPredictionLimit = 20
)

// Store is the persistence the handlers need
type Store interface {
	InsertReadings(ctx context.Context, readings []types.SensorReading) (successful, failed int, err error)
	LatestReading(ctx context.Context) (*types.SensorReading, error)
	RecentReadings(ctx context.Context, n int) ([]types.SensorReading, error)
	RecordPrediction(ctx context.Context, p *database.Prediction) error
	RecentPredictions(ctx context.Context, limit int) ([]database.Prediction, error)
	Counts(ctx context.Context) (readings, predictions int64, err error)
	Ping(ctx context.Context) error
}

// HealthChecker is an optional backing service reported by /health
type HealthChecker interface {
	IsEnabled() bool
	HealthCheck(ctx context.Context) error
}

// StatsFunc reports the statistics of one subsystem for /stats
type StatsFunc func() map[string]interface{}

// Options configures a Handler. Store may be nil, which disables the
// persistence routes.
type Options struct {
	Analyzer           *analysis.Analyzer
	Store              Store
	Metrics            *monitoring.Metrics
	Logger             *monitoring.Logger
	PersistPredictions bool
	Stats              map[string]StatsFunc
	// Redis backs the rate limiter; when it is down the limiter falls back
	// to memory, so its state is reported without degrading health.
	Redis HealthChecker
}

// Handler serves the classifier API
type Handler struct {
	analyzer *analysis.Analyzer
	store    Store
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
	persist  bool
	breaker  *resilience.CircuitBreaker
	redis    HealthChecker
	stats    map[string]StatsFunc
	started  time.Time
}

// New creates a Handler
func New(opts Options) *Handler {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	logger := opts.Logger
	if logger == nil {
		logger = monitoring.NewLogger()
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 1,
	})
	return &Handler{
		analyzer: opts.Analyzer,
		store:    opts.Store,
		metrics:  metrics,
		logger:   logger,
		persist:  opts.PersistPredictions && opts.Store != nil,
		breaker:  breaker,
		redis:    opts.Redis,
		stats:    opts.Stats,
		started:  time.Now(),
	}
}

// Register mounts the API routes on r. guard runs in front of the scoring
// and ingest routes only (rate limiting, response caching).
func (h *Handler) Register(r gin.IRouter, guard ...gin.HandlerFunc) {
	r.GET("/", h.Welcome)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/schema", h.Schema)

	guarded := r.Group("/", guard...)
	guarded.POST("/predict", h.Predict)
	guarded.POST("/features", h.Features)
	guarded.POST("/predict/latest", h.PredictLatest)
	guarded.POST("/api/sensor/batch", h.IngestBatch)

	api := r.Group("/api")
	api.GET("/sensor", h.LatestReading)
	api.GET("/predictions", h.ListPredictions)
}

func (h *Handler) modelVersion() string {
	if sc := h.analyzer.Scoring(); sc != nil {
		return sc.Version()
	}
	return ""
}

// Welcome answers the root path
func (h *Handler) Welcome(c *gin.Context) {
	c.String(http.StatusOK, "Motion classifier API. POST /predict with {\"data\": [...]} to classify a window of %d samples.\n", h.analyzer.WindowSize())
}

// Predict classifies the first window of the posted samples
// @Summary Classify a window of motion samples
// @Description Extracts the feature vector from the first N samples, normalizes it and returns the thresholded decision
// @Tags classifier
// @Accept json
// @Produce json
// @Param request body types.PredictRequest true "Accelerometer and gyroscope samples"
// @Success 200 {object} types.PredictResponse
// @Failure 400 {object} map[string]interface{} "Missing or insufficient data"
// @Failure 500 {object} map[string]interface{} "Schema mismatch or inference failure"
// @Router /predict [post]
func (h *Handler) Predict(c *gin.Context) {
	var req types.PredictRequest
	if !bindJSON(c, &req) {
		return
	}

	start := time.Now()
	res, err := h.analyzer.PredictRecords(req.Data)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, res, len(req.Data), database.SourceRequest, time.Since(start))
	c.JSON(http.StatusOK, types.PredictResponse{
		PredictedLabel:       res.Label,
		PredictedProbability: res.Probability,
	})
}

// Features returns the ordered feature vector for the posted samples
// @Summary Extract features
// @Description Returns the ordered feature vector the classifier would see, without scoring it
// @Tags classifier
// @Accept json
// @Produce json
// @Param request body types.PredictRequest true "Accelerometer and gyroscope samples"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Missing or insufficient data"
// @Failure 500 {object} map[string]interface{} "Schema mismatch"
// @Router /features [post]
func (h *Handler) Features(c *gin.Context) {
	var req types.PredictRequest
	if !bindJSON(c, &req) {
		return
	}

	fv, err := h.analyzer.ExtractFromRecords(req.Data)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"features":    fv,
		"count":       fv.Len(),
		"window_size": h.analyzer.WindowSize(),
	})
}

// PredictLatest classifies the most recent stored window
// @Summary Classify the latest stored readings
// @Tags classifier
// @Produce json
// @Success 200 {object} types.PredictResponse
// @Failure 400 {object} map[string]interface{} "Not enough stored readings"
// @Failure 503 {object} map[string]interface{} "Storage unavailable"
// @Router /predict/latest [post]
func (h *Handler) PredictLatest(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	readings, err := h.store.RecentReadings(c.Request.Context(), h.analyzer.WindowSize())
	if err != nil {
		errors.Respond(c, errors.NewStorageError("Failed to load readings", err))
		return
	}

	samples := make([]types.SensorSample, len(readings))
	for i, r := range readings {
		samples[i] = r.Sample()
	}

	start := time.Now()
	res, err := h.analyzer.Predict(samples)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, res, len(samples), database.SourceStored, time.Since(start))
	c.JSON(http.StatusOK, types.PredictResponse{
		PredictedLabel:       res.Label,
		PredictedProbability: res.Probability,
	})
}

// Schema describes the feature vector contract
// @Summary Feature schema
// @Tags classifier
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /schema [get]
func (h *Handler) Schema(c *gin.Context) {
	schema := analysis.FeatureSchema()
	c.JSON(http.StatusOK, gin.H{
		"features":      schema,
		"count":         len(schema),
		"window_size":   h.analyzer.WindowSize(),
		"model_version": h.modelVersion(),
		"threshold":     analysis.DecisionThreshold,
	})
}

// IngestBatch stores readings pushed by a device
// @Summary Ingest sensor readings
// @Tags sensor
// @Accept json
// @Produce json
// @Param request body types.BatchIngestRequest true "Readings"
// @Success 200 {object} types.BatchIngestResponse
// @Failure 400 {object} map[string]interface{} "Invalid batch"
// @Failure 503 {object} map[string]interface{} "Storage unavailable"
// @Router /api/sensor/batch [post]
func (h *Handler) IngestBatch(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	var req types.BatchIngestRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.BatchData) == 0 {
		errors.Respond(c, errors.NewValidationError("batch_data must contain at least one reading"))
		return
	}
	if len(req.BatchData) > MaxBatchSize {
		errors.Respond(c, errors.NewValidationError("batch_data too large", "max="+strconv.Itoa(MaxBatchSize)))
		return
	}

	start := time.Now()
	successful, failed, err := h.store.InsertReadings(c.Request.Context(), req.BatchData)
	if err != nil {
		errors.Respond(c, errors.NewStorageError("Failed to store readings", err))
		return
	}

	h.metrics.RecordIngest(successful, failed)
	h.logger.IngestLogger(c.GetString(monitoring.RequestIDKey), successful, failed, time.Since(start))

	c.JSON(http.StatusOK, types.BatchIngestResponse{Successful: successful, Failed: failed})
}

// LatestReading returns the newest stored reading
// @Summary Latest sensor reading
// @Tags sensor
// @Produce json
// @Success 200 {object} types.SensorReading
// @Failure 404 {object} map[string]interface{} "No readings stored"
// @Router /api/sensor [get]
func (h *Handler) LatestReading(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	reading, err := h.store.LatestReading(c.Request.Context())
	if err == database.ErrNotFound {
		errors.Respond(c, errors.NewNotFoundError("No sensor readings stored"))
		return
	}
	if err != nil {
		errors.Respond(c, errors.NewStorageError("Failed to load reading", err))
		return
	}

	c.JSON(http.StatusOK, reading)
}

// ListPredictions returns recent stored predictions, newest first
// @Summary Recent predictions
// @Tags classifier
// @Produce json
// @Param limit query int false "Maximum number of predictions (1-100)" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Invalid limit"
// @Router /api/predictions [get]
func (h *Handler) ListPredictions(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	limit := defaultPredictionLimit
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 {
			errors.Respond(c, errors.NewValidationError("limit must be a positive integer", raw))
			return
		}
		limit = min(l, database.MaxPredictionPage)
	}

	predictions, err := h.store.RecentPredictions(c.Request.Context(), limit)
	if err != nil {
		errors.Respond(c, errors.NewStorageError("Failed to load predictions", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": predictions,
		"count":       len(predictions),
		"limit":       limit,
	})
}

// Health reports liveness and model state
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{} "Degraded"
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK

	storage := "disabled"
	if h.store != nil {
		storage = "ok"
		if err := h.store.Ping(c.Request.Context()); err != nil {
			storage = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	redis := "disabled"
	if h.redis != nil && h.redis.IsEnabled() {
		redis = "ok"
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		if err := h.redis.HealthCheck(ctx); err != nil {
			redis = "unavailable"
		}
		cancel()
	}

	model := "loaded"
	if h.analyzer.Scoring() == nil {
		model = "unavailable"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":         status,
		"timestamp":      time.Now().Format(time.RFC3339),
		"version":        Version,
		"model":          model,
		"model_version":  h.modelVersion(),
		"window_size":    h.analyzer.WindowSize(),
		"storage":        storage,
		"redis":          redis,
		"uptime_seconds": time.Since(h.started).Seconds(),
	})
}

// Stats returns request and prediction statistics
// @Summary Service statistics
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /stats [get]
func (h *Handler) Stats(c *gin.Context) {
	response := gin.H{"metrics": h.metrics.GetStats()}

	if h.store != nil {
		if readings, predictions, err := h.store.Counts(c.Request.Context()); err == nil {
			response["storage"] = gin.H{"readings": readings, "predictions": predictions}
		}
	}
	if h.persist {
		response["persistence"] = h.breaker.GetStats()
	}
	for name, fn := range h.stats {
		response[name] = fn()
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) requireStore(c *gin.Context) bool {
	if h.store == nil {
		errors.Respond(c, errors.NewStorageError("Sensor storage is not configured", nil))
		return false
	}
	return true
}

// fail responds with the mapped error and counts it against the scoring
// failure counters shared by /predict, /predict/latest and /features
func (h *Handler) fail(c *gin.Context, err error) {
	appErr := errors.ToAppError(err)
	h.metrics.RecordPredictionFailure(appErr.HTTPStatus < http.StatusInternalServerError)
	errors.Respond(c, appErr)
}

// record updates metrics and logs a decision, then persists it if enabled.
// A persistence failure is logged but does not fail the request.
func (h *Handler) record(c *gin.Context, res analysis.ScoreResult, samples int, source string, elapsed time.Duration) {
	version := h.modelVersion()
	windowSize := h.analyzer.WindowSize()

	h.metrics.RecordPrediction(version, res.Label, res.Probability, elapsed)
	h.logger.PredictionLogger(c.GetString(monitoring.RequestIDKey), version, samples, windowSize, res.Label, res.Probability, elapsed)

	if !h.persist {
		return
	}
	// Scoring results are returned even when the history write fails; the
	// breaker keeps a broken store from adding latency to every request
	p := database.NewPrediction(res.Label, res.Probability, windowSize, version, source)
	err := h.breaker.Call(func() error {
		return h.store.RecordPrediction(c.Request.Context(), p)
	})
	if err != nil {
		h.logger.Warn("Failed to persist prediction", "error", err, "request_id", c.GetString(monitoring.RequestIDKey))
	}
}

// bindJSON decodes the body into dst, responding with a client error on
// failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		appErr := errors.ToAppError(err)
		if appErr.Category == errors.CategoryInternal {
			// Binding validation failures are the caller's fault
			appErr = errors.NewValidationError("Invalid request body", err.Error())
		}
		errors.Respond(c, appErr)
		return false
	}
	return true
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/motion-classifier/internal/analysis"
	"github.com/ZanzyTHEbar/motion-classifier/internal/database"
	"github.com/ZanzyTHEbar/motion-classifier/internal/monitoring"
	"github.com/ZanzyTHEbar/motion-classifier/internal/types"
)

type fixedClassifier struct {
	p   float64
	err error
}

func (f *fixedClassifier) InputSize() int { return analysis.FeatureCount }

func (f *fixedClassifier) Predict([]float64) (float64, error) { return f.p, f.err }

type testServer struct {
	router  *gin.Engine
	metrics *monitoring.Metrics
	repo    *database.Repository
	clf     *fixedClassifier
}

func newTestServer(t *testing.T, withStore bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clf := &fixedClassifier{p: 0.8}
	sc, err := analysis.NewScoringContext("test-v1", analysis.IdentityScaler(analysis.FeatureSchema()), clf)
	require.NoError(t, err)
	analyzer, err := analysis.NewAnalyzer(analysis.DefaultWindowSize, sc)
	require.NoError(t, err)

	ts := &testServer{metrics: monitoring.NewMetrics(), clf: clf}
	opts := Options{
		Analyzer:           analyzer,
		Metrics:            ts.metrics,
		Logger:             monitoring.NewLoggerWithWriter(io.Discard, 0),
		PersistPredictions: true,
		Stats: map[string]StatsFunc{
			"cache": func() map[string]interface{} { return map[string]interface{}{"total_items": 0} },
		},
	}
	if withStore {
		db, err := database.NewDB(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		ts.repo = database.NewRepository(db)
		opts.Store = ts.repo
	}

	ts.router = gin.New()
	ts.router.Use(monitoring.RequestIDMiddleware())
	New(opts).Register(ts.router)
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func samplesBody(n int) string {
	records := make([]map[string]float64, n)
	for i := range records {
		v := float64(i%5) - 2
		records[i] = map[string]float64{"AcX": v, "AcY": 1, "AcZ": 0.5 * v, "GyX": -v, "GyY": 0, "GyZ": 2}
	}
	b, _ := json.Marshal(map[string]interface{}{"data": records})
	return string(b)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestPredict(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(http.MethodPost, "/predict", samplesBody(25))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.PredictedLabel)
	assert.Equal(t, 0.8, resp.PredictedProbability)

	assert.Equal(t, int64(1), ts.metrics.Predictions)

	stored, err := ts.repo.RecentPredictions(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "test-v1", stored[0].ModelVersion)
	assert.Equal(t, database.SourceRequest, stored[0].Source)
	assert.Equal(t, 21, stored[0].WindowSize)
}

func TestPredict_ThresholdBoundary(t *testing.T) {
	ts := newTestServer(t, false)
	ts.clf.p = 0.5

	w := ts.do(http.MethodPost, "/predict", samplesBody(21))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["predicted_label"])
}

func TestPredict_ClientErrors(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		name     string
		body     string
		status   int
		category string
	}{
		{"missing data", `{}`, http.StatusBadRequest, "validation"},
		{"null data", `{"data":null}`, http.StatusBadRequest, "validation"},
		{"empty data", `{"data":[]}`, http.StatusBadRequest, "validation"},
		{"short data", samplesBody(20), http.StatusBadRequest, "validation"},
		{"missing axis", `{"data":[{"AcX":1,"AcY":1,"AcZ":1,"GyX":1,"GyY":1}]}`, http.StatusBadRequest, "validation"},
		{"malformed json", `{"data":[`, http.StatusBadRequest, "validation"},
		{"wrong type", `{"data":"abc"}`, http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/predict", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.category, decode(t, w)["category"])
		})
	}

	assert.Equal(t, int64(len(tests)-2), ts.metrics.ClientFailures)
	assert.Equal(t, int64(0), ts.metrics.Predictions)
}

func TestPredict_InferenceFailure(t *testing.T) {
	ts := newTestServer(t, false)
	ts.clf.err = fmt.Errorf("weights corrupted")

	w := ts.do(http.MethodPost, "/predict", samplesBody(21))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "inference", body["category"])
	assert.Equal(t, int64(1), ts.metrics.InferenceFailures)
}

func TestFeatures(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodPost, "/features", samplesBody(21))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(analysis.FeatureCount), body["count"])
	features := body["features"].(map[string]interface{})
	assert.Len(t, features, analysis.FeatureCount)
	assert.Contains(t, features, "AcX_mean")
	assert.Contains(t, features, "gyro_mag_std")

	// Ordered keys in the raw body follow the schema
	raw := w.Body.String()
	schema := analysis.FeatureSchema()
	assert.Less(t, strings.Index(raw, `"`+schema[0]+`"`), strings.Index(raw, `"`+schema[len(schema)-1]+`"`))
}

func TestFeatures_FailuresAreCounted(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodPost, "/features", samplesBody(analysis.DefaultWindowSize-1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(1), ts.metrics.ClientFailures)

	// overflowing axis values cannot produce finite features
	records := make([]map[string]float64, analysis.DefaultWindowSize)
	for i := range records {
		v := 1e308
		if i%2 == 1 {
			v = -1e308
		}
		records[i] = map[string]float64{"AcX": v, "AcY": 0, "AcZ": 0, "GyX": 0, "GyY": 0, "GyZ": 0}
	}
	body, err := json.Marshal(map[string]interface{}{"data": records})
	require.NoError(t, err)

	w = ts.do(http.MethodPost, "/features", string(body))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "inference", decode(t, w)["category"])
	assert.Equal(t, int64(1), ts.metrics.InferenceFailures)
	assert.Equal(t, int64(0), ts.metrics.Predictions)
}

func TestSchema(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodGet, "/schema", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(analysis.FeatureCount), body["count"])
	assert.Equal(t, float64(21), body["window_size"])
	assert.Equal(t, "test-v1", body["model_version"])
	assert.Equal(t, 0.5, body["threshold"])
}

func TestIngestAndPredictLatest(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(http.MethodPost, "/predict/latest", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "no readings yet")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := make([]types.SensorReading, 21)
	for i := range batch {
		batch[i] = types.SensorReading{AcX: float64(i), AcY: 1, AcZ: 1, GyX: 0, GyY: 0, GyZ: 0, BPM: 70, Timestamp: base.Add(time.Duration(i) * time.Second)}
	}
	payload, err := json.Marshal(types.BatchIngestRequest{BatchData: batch})
	require.NoError(t, err)

	w = ts.do(http.MethodPost, "/api/sensor/batch", string(payload))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ingest types.BatchIngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ingest))
	assert.Equal(t, 21, ingest.Successful)
	assert.Equal(t, 0, ingest.Failed)
	assert.Equal(t, int64(21), ts.metrics.ReadingsIngested)

	w = ts.do(http.MethodGet, "/api/sensor", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(20), decode(t, w)["AcX"])

	w = ts.do(http.MethodPost, "/predict/latest", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["predicted_label"])

	w = ts.do(http.MethodGet, "/api/predictions", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])
	first := body["predictions"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, database.SourceStored, first["source"])
}

func TestIngestBatch_Invalid(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(http.MethodPost, "/api/sensor/batch", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/sensor/batch", `{"batch_data":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var big bytes.Buffer
	big.WriteString(`{"batch_data":[`)
	for i := 0; i <= MaxBatchSize; i++ {
		if i > 0 {
			big.WriteString(",")
		}
		big.WriteString(`{"AcX":1,"AcY":1,"AcZ":1,"GyX":1,"GyY":1,"GyZ":1,"bpm":60}`)
	}
	big.WriteString(`]}`)
	w = ts.do(http.MethodPost, "/api/sensor/batch", big.String())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestBatch_DeviceTimestamps(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(http.MethodPost, "/api/sensor/batch", `{"batch_data":[
		{"AcX":1,"AcY":2,"AcZ":3,"GyX":0,"GyY":0,"GyZ":0,"bpm":72,"timestamp":"2024-03-01 12:00:00"},
		{"AcX":4,"AcY":5,"AcZ":6,"GyX":0,"GyY":0,"GyZ":0,"bpm":73,"timestamp":"2024-03-01T12:00:01Z"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["successful"])

	reading, err := ts.repo.LatestReading(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4.0, reading.AcX)

	recent, err := ts.repo.RecentReadings(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Equal(recent[0].Timestamp), recent[0].Timestamp)

	w = ts.do(http.MethodPost, "/api/sensor/batch", `{"batch_data":[{"AcX":1,"AcY":1,"AcZ":1,"GyX":1,"GyY":1,"GyZ":1,"bpm":60,"timestamp":"01/03/2024"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestReading_NotFound(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(http.MethodGet, "/api/sensor", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["category"])
}

func TestListPredictions_Limit(t *testing.T) {
	ts := newTestServer(t, true)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/predict", samplesBody(21)).Code)
	}

	tests := []struct {
		query  string
		status int
		count  float64
		limit  float64
	}{
		{"", http.StatusOK, 3, 20},
		{"?limit=2", http.StatusOK, 2, 2},
		{"?limit=500", http.StatusOK, 3, 100},
		{"?limit=0", http.StatusBadRequest, 0, 0},
		{"?limit=abc", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			w := ts.do(http.MethodGet, "/api/predictions"+tt.query, "")
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			body := decode(t, w)
			assert.Equal(t, tt.count, body["count"])
			assert.Equal(t, tt.limit, body["limit"])
		})
	}
}

func TestStorageRoutesWithoutStore(t *testing.T) {
	ts := newTestServer(t, false)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/predict/latest"},
		{http.MethodGet, "/api/sensor"},
		{http.MethodGet, "/api/predictions"},
		{http.MethodPost, "/api/sensor/batch"},
	} {
		w := ts.do(route.method, route.path, `{"batch_data":[{}]}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, route.path)
	}

	// Predictions still succeed without persistence
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/predict", samplesBody(21)).Code)
}

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, "test-v1", body["model_version"])
	assert.Equal(t, "ok", body["storage"])

	ts.do(http.MethodPost, "/predict", samplesBody(21))

	w = ts.do(http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	metrics := body["metrics"].(map[string]interface{})
	assert.Equal(t, float64(1), metrics["predictions"])
	assert.Contains(t, body, "cache")
	assert.Equal(t, float64(1), body["storage"].(map[string]interface{})["predictions"])
}

type stubRedis struct {
	enabled bool
	err     error
}

func (s *stubRedis) IsEnabled() bool { return s.enabled }

func (s *stubRedis) HealthCheck(context.Context) error { return s.err }

func TestHealth_Redis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	analyzer, err := analysis.NewAnalyzer(analysis.DefaultWindowSize, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		redis HealthChecker
		want  string
	}{
		{name: "not configured", redis: nil, want: "disabled"},
		{name: "fallback client", redis: &stubRedis{}, want: "disabled"},
		{name: "healthy", redis: &stubRedis{enabled: true}, want: "ok"},
		{name: "ping fails", redis: &stubRedis{enabled: true, err: fmt.Errorf("connection refused")}, want: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			New(Options{Analyzer: analyzer, Logger: monitoring.NewLoggerWithWriter(io.Discard, 0), Redis: tt.redis}).Register(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.want, decode(t, w)["redis"])
		})
	}
}

func TestHealth_NoModel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	analyzer, err := analysis.NewAnalyzer(analysis.DefaultWindowSize, nil)
	require.NoError(t, err)

	r := gin.New()
	New(Options{Analyzer: analyzer, Logger: monitoring.NewLoggerWithWriter(io.Discard, 0)}).Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(samplesBody(21)))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWelcome(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "POST /predict")
}

type brokenHistory struct {
	*database.Repository
	calls int
}

func (b *brokenHistory) RecordPrediction(context.Context, *database.Prediction) error {
	b.calls++
	return fmt.Errorf("disk I/O error")
}

func TestPredict_PersistenceFailureOpensBreaker(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := &brokenHistory{Repository: database.NewRepository(db)}

	sc, err := analysis.NewScoringContext("test-v1", analysis.IdentityScaler(analysis.FeatureSchema()), &fixedClassifier{p: 0.3})
	require.NoError(t, err)
	analyzer, err := analysis.NewAnalyzer(analysis.DefaultWindowSize, sc)
	require.NoError(t, err)

	ts := &testServer{router: gin.New()}
	New(Options{
		Analyzer:           analyzer,
		Store:              store,
		Logger:             monitoring.NewLoggerWithWriter(io.Discard, 0),
		PersistPredictions: true,
	}).Register(ts.router)

	for i := 0; i < 8; i++ {
		w := ts.do(http.MethodPost, "/predict", samplesBody(analysis.DefaultWindowSize))
		require.Equal(t, http.StatusOK, w.Code, "history failures never fail scoring")
	}
	assert.Equal(t, 5, store.calls, "breaker stops calling the store once open")

	body := decode(t, ts.do(http.MethodGet, "/stats", ""))
	persistence, ok := body["persistence"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "open", persistence["state"])
	assert.Equal(t, float64(3), persistence["rejected"])
}

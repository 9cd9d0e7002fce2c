package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "motion"

type promCollectors struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	predictions      *prometheus.CounterVec
	predictionErrors *prometheus.CounterVec
	probability      prometheus.Histogram
	inference        prometheus.Histogram
	cache            *prometheus.CounterVec
	ingested         *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
}

func newPromCollectors() *promCollectors {
	p := &promCollectors{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "http", Name: "requests_total", Help: "HTTP requests by route and status."},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds", Help: "HTTP request latency.", Buckets: prometheus.DefBuckets},
			[]string{"method", "route"},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "classifier", Name: "predictions_total", Help: "Scoring decisions by model version and label."},
			[]string{"model_version", "label"},
		),
		predictionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "classifier", Name: "prediction_errors_total", Help: "Failed scoring calls by failure class."},
			[]string{"class"},
		),
		probability: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Subsystem: "classifier", Name: "probability", Help: "Distribution of predicted probabilities.", Buckets: prometheus.LinearBuckets(0.1, 0.1, 9)},
		),
		inference: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Subsystem: "classifier", Name: "pipeline_duration_seconds", Help: "Feature extraction plus scoring latency.", Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12)},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "cache", Name: "lookups_total", Help: "Response cache lookups by result."},
			[]string{"result"},
		),
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "sensor", Name: "readings_total", Help: "Ingested sensor readings by outcome."},
			[]string{"outcome"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "ratelimit", Name: "blocked_total", Help: "Requests rejected by the rate limiter."},
			[]string{"scope"},
		),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.requests, p.duration,
		p.predictions, p.predictionErrors, p.probability, p.inference,
		p.cache, p.ingested, p.rateLimited,
	)
	return p
}

// Registry exposes the Prometheus registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.prom.registry
}

// PrometheusHandler serves the registry in the Prometheus text format
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.prom.registry, promhttp.HandlerOpts{})
}

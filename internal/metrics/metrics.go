// Package metrics holds the Prometheus collector for the classifier service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "snaplabel"

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Pipeline metrics
	Predictions       *prometheus.CounterVec
	PredictionCache   prometheus.Counter
	PipelineErrors    *prometheus.CounterVec
	InferenceDuration prometheus.Histogram

	// Session metrics
	ActiveSessions prometheus.Gauge
}

// NewCollector creates a collector registered on its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "predictions_total",
				Help:      "Predictions computed, by top label",
			},
			[]string{"label"},
		),
		PredictionCache: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "prediction_cache_hits_total",
				Help:      "Renders served from the cached prediction",
			},
		),
		PipelineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pipeline_errors_total",
				Help:      "Classification pipeline failures, by error code",
			},
			[]string{"code"},
		),
		InferenceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "inference_duration_seconds",
				Help:      "Predictor call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "active_sessions",
				Help:      "Sessions currently held in memory",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Predictions,
		c.PredictionCache,
		c.PipelineErrors,
		c.InferenceDuration,
		c.ActiveSessions,
	)

	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObservePrediction records a freshly computed prediction.
func (c *Collector) ObservePrediction(label string, d time.Duration) {
	if c == nil {
		return
	}
	c.Predictions.WithLabelValues(label).Inc()
	c.InferenceDuration.Observe(d.Seconds())
}

// CacheHit records a render answered from the cached prediction.
func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.PredictionCache.Inc()
}

// PipelineError records a failed classification by error code.
func (c *Collector) PipelineError(code string) {
	if c == nil {
		return
	}
	c.PipelineErrors.WithLabelValues(code).Inc()
}

// SetActiveSessions sets the live session gauge.
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.ActiveSessions.Set(float64(n))
}

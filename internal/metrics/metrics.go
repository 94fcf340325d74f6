package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spam_filter"

// Metrics owns a private Prometheus registry and the classifier collectors.
// It implements core.PredictionObserver.
type Metrics struct {
	registry           *prometheus.Registry
	predictions        *prometheus.CounterVec
	failures           prometheus.Counter
	predictionDuration prometheus.Histogram
	confidence         prometheus.Histogram
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

var _ core.PredictionObserver = (*Metrics)(nil)

// New creates the collectors and registers them along with the Go runtime collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Number of classified texts by predicted class.",
		}, []string{"prediction"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Number of texts that could not be classified.",
		}),
		predictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent vectorizing and scoring a single text.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_confidence",
			Help:      "Distribution of prediction confidence percentage.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.predictions,
		m.failures,
		m.predictionDuration,
		m.confidence,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the registry for tests and additional collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePrediction records a successful classification
func (m *Metrics) ObservePrediction(result *core.PredictionResult, duration time.Duration) {
	m.predictions.WithLabelValues(result.Prediction).Inc()
	m.predictionDuration.Observe(duration.Seconds())
	m.confidence.Observe(result.ConfidencePercentage)
}

// ObserveFailure records a classification that returned an error
func (m *Metrics) ObserveFailure() {
	m.failures.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by the matched chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Nop is an observer that discards everything
type Nop struct{}

func (Nop) ObservePrediction(*core.PredictionResult, time.Duration) {}
func (Nop) ObserveFailure()                                        {}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePrediction(t *testing.T) {
	m := New()

	m.ObservePrediction(&core.PredictionResult{Prediction: core.PredictionSpam, ConfidencePercentage: 95}, 2*time.Millisecond)
	m.ObservePrediction(&core.PredictionResult{Prediction: core.PredictionSpam, ConfidencePercentage: 40}, time.Millisecond)
	m.ObservePrediction(&core.PredictionResult{Prediction: core.PredictionHam, ConfidencePercentage: 70}, time.Millisecond)
	m.ObserveFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues(core.PredictionSpam)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues(core.PredictionHam)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures))

	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP spam_filter_prediction_failures_total Number of texts that could not be classified.
# TYPE spam_filter_prediction_failures_total counter
spam_filter_prediction_failures_total 1
`), "spam_filter_prediction_failures_total")
	assert.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "spam_filter_prediction_confidence" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			assert.Equal(t, uint64(3), h.GetSampleCount())
			assert.Equal(t, 205.0, h.GetSampleSum())
		}
	}
	assert.True(t, found)
}

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/plain", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/items/1", "/items/2", "/plain", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/items/{id}", "202")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/plain", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveFailure()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spam_filter_prediction_failures_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNop(t *testing.T) {
	var o core.PredictionObserver = Nop{}
	assert.NotPanics(t, func() {
		o.ObservePrediction(&core.PredictionResult{}, time.Second)
		o.ObserveFailure()
	})
}

package core

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

// keywordVectorizer counts "spam" at index 0 and "ham" at index 1.
// Text containing "boom" fails to vectorize.
type keywordVectorizer struct {
	dim int

	mu   sync.Mutex
	seen []string
}

func (v *keywordVectorizer) Transform(text string) (*FeatureVector, error) {
	v.mu.Lock()
	v.seen = append(v.seen, text)
	v.mu.Unlock()

	if strings.Contains(text, "boom") {
		return nil, errBoom
	}

	var spam, ham float64
	for _, w := range strings.Fields(text) {
		switch w {
		case "spam":
			spam++
		case "ham":
			ham++
		}
	}

	vec := &FeatureVector{Dim: v.Dimension()}
	if spam > 0 {
		vec.Indices = append(vec.Indices, 0)
		vec.Values = append(vec.Values, spam)
	}
	if ham > 0 {
		vec.Indices = append(vec.Indices, 1)
		vec.Values = append(vec.Values, ham)
	}
	return vec, nil
}

func (v *keywordVectorizer) Dimension() int {
	if v.dim == 0 {
		return 2
	}
	return v.dim
}

// weightScorer scores spam as +1 and ham as -1 per occurrence
type weightScorer struct {
	intercept float64
	nan       bool
	label     *int
}

func (s *weightScorer) DecisionFunction(v *FeatureVector) (float64, error) {
	if s.nan {
		return math.NaN(), nil
	}
	coef := []float64{1, -1}
	score := s.intercept
	for i, idx := range v.Indices {
		score += coef[idx] * v.Values[i]
	}
	return score, nil
}

func (s *weightScorer) Predict(v *FeatureVector) (int, error) {
	if s.label != nil {
		return *s.label, nil
	}
	score, err := s.DecisionFunction(v)
	if err != nil {
		return 0, err
	}
	if score > 0 {
		return LabelSpam, nil
	}
	return LabelHam, nil
}

func (s *weightScorer) Dimension() int {
	return 2
}

// fakeHistory is an in-memory HistoryRepository with injectable failures
type fakeHistory struct {
	mu        sync.Mutex
	records   []*HistoryRecord
	createdAt time.Time
	addErr    error
	listErr   error
}

func (h *fakeHistory) Add(ctx context.Context, record *HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.addErr != nil {
		return h.addErr
	}
	h.records = append(h.records, record)
	return nil
}

func (h *fakeHistory) List(ctx context.Context, limit int) ([]*HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listErr != nil {
		return nil, h.listErr
	}
	records := h.records
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return append([]*HistoryRecord{}, records...), nil
}

func (h *fakeHistory) ListRange(ctx context.Context, start, end time.Time) ([]*HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*HistoryRecord
	for _, r := range h.records {
		if !r.Timestamp.Before(start) && !r.Timestamp.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *fakeHistory) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
	return nil
}

func (h *fakeHistory) Cleanup(ctx context.Context, olderThan time.Time) error {
	return nil
}

func (h *fakeHistory) CreatedAt(ctx context.Context) (time.Time, error) {
	return h.createdAt, nil
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// countingObserver tallies observer callbacks
type countingObserver struct {
	mu          sync.Mutex
	predictions int
	failures    int
}

func (o *countingObserver) ObservePrediction(result *PredictionResult, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.predictions++
}

func (o *countingObserver) ObserveFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

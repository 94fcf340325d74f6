package sklearn

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/coastguard/svm-spam-filter/internal/core"
)

// modelFile is the exported form of a fitted binary linear classifier
type modelFile struct {
	ModelType string          `json:"model_type"`
	Coef      json.RawMessage `json:"coef"`
	Intercept json.RawMessage `json:"intercept"`
	Classes   []int           `json:"classes"`
	Metrics   *modelMetrics   `json:"metrics"`
}

type modelMetrics struct {
	Accuracy      float64 `json:"accuracy"`
	PrecisionHam  float64 `json:"precision_ham"`
	PrecisionSpam float64 `json:"precision_spam"`
	RecallHam     float64 `json:"recall_ham"`
	RecallSpam    float64 `json:"recall_spam"`
	F1Ham         float64 `json:"f1_ham"`
	F1Spam        float64 `json:"f1_spam"`
	TN            int     `json:"tn"`
	FP            int     `json:"fp"`
	FN            int     `json:"fn"`
	TP            int     `json:"tp"`
}

// LinearSVC is a fitted binary linear classifier with scikit-learn's
// decision_function and predict semantics. It is immutable after loading.
type LinearSVC struct {
	modelType string
	coef      []float64
	intercept float64
	classes   [2]int
	metrics   modelMetrics
}

// LoadLinearSVC decodes and validates an exported classifier.
// coef may be a flat list or scikit-learn's (1, n_features) nested list;
// intercept may be a number or a one-element list.
func LoadLinearSVC(data []byte) (*LinearSVC, error) {
	var f modelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	coef, err := decodeCoef(f.Coef)
	if err != nil {
		return nil, err
	}
	if len(coef) == 0 {
		return nil, fmt.Errorf("model has no coefficients")
	}
	for i, w := range coef {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}

	intercept, err := decodeIntercept(f.Intercept)
	if err != nil {
		return nil, err
	}

	classes := f.Classes
	if len(classes) == 0 {
		classes = []int{core.LabelHam, core.LabelSpam}
	}
	if len(classes) != 2 {
		return nil, fmt.Errorf("expected a binary classifier, got %d classes", len(classes))
	}
	if classes[0] != core.LabelHam || classes[1] != core.LabelSpam {
		return nil, fmt.Errorf("expected classes [%d, %d], got %v", core.LabelHam, core.LabelSpam, classes)
	}

	m := &LinearSVC{
		modelType: f.ModelType,
		coef:      coef,
		intercept: intercept,
		classes:   [2]int{classes[0], classes[1]},
	}
	if m.modelType == "" {
		m.modelType = "Linear SVM"
	}
	if f.Metrics != nil {
		m.metrics = *f.Metrics
	}
	return m, nil
}

func decodeCoef(raw json.RawMessage) ([]float64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("model has no coef")
	}
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("failed to decode coef: %w", err)
	}
	if len(nested) != 1 {
		return nil, fmt.Errorf("expected coef with one row, got %d", len(nested))
	}
	return nested[0], nil
}

func decodeIntercept(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}
	var list []float64
	if err := json.Unmarshal(raw, &list); err != nil {
		return 0, fmt.Errorf("failed to decode intercept: %w", err)
	}
	if len(list) != 1 {
		return 0, fmt.Errorf("expected one intercept, got %d", len(list))
	}
	return list[0], nil
}

// Dimension returns the number of coefficients
func (m *LinearSVC) Dimension() int {
	return len(m.coef)
}

// DecisionFunction returns coef . x + intercept. Products are summed from zero
// in ascending index order and the intercept is added last, the order
// scikit-learn's sparse dot product uses, so scores match bit for bit.
func (m *LinearSVC) DecisionFunction(v *core.FeatureVector) (float64, error) {
	if v.Dim != len(m.coef) {
		return 0, fmt.Errorf("feature vector has %d dimensions, model expects %d", v.Dim, len(m.coef))
	}
	if len(v.Indices) != len(v.Values) {
		return 0, fmt.Errorf("malformed feature vector: %d indices, %d values", len(v.Indices), len(v.Values))
	}

	var dot float64
	for i, idx := range v.Indices {
		if idx < 0 || idx >= len(m.coef) {
			return 0, fmt.Errorf("feature index %d out of range", idx)
		}
		// explicit conversion rounds the product and prevents a fused multiply-add
		dot += float64(m.coef[idx] * v.Values[i])
	}
	return dot + m.intercept, nil
}

// Predict returns the spam label when the decision value is positive, ham otherwise
func (m *LinearSVC) Predict(v *core.FeatureVector) (int, error) {
	score, err := m.DecisionFunction(v)
	if err != nil {
		return 0, err
	}
	if score > 0 {
		return m.classes[1], nil
	}
	return m.classes[0], nil
}

// Info returns the model description and its offline evaluation metrics
func (m *LinearSVC) Info() core.ModelInfo {
	return core.ModelInfo{
		ModelType:     m.modelType,
		Features:      len(m.coef),
		Accuracy:      m.metrics.Accuracy,
		PrecisionHam:  m.metrics.PrecisionHam,
		PrecisionSpam: m.metrics.PrecisionSpam,
		RecallHam:     m.metrics.RecallHam,
		RecallSpam:    m.metrics.RecallSpam,
		F1Ham:         m.metrics.F1Ham,
		F1Spam:        m.metrics.F1Spam,
		TN:            m.metrics.TN,
		FP:            m.metrics.FP,
		FN:            m.metrics.FN,
		TP:            m.metrics.TP,
	}
}

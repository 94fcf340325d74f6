package core

import (
	"fmt"
	"math"

	"github.com/coastguard/svm-spam-filter/internal/utils"
	"go.uber.org/zap"
)

// ConfidenceSaturation is the decision value at which confidence reaches 1.0.
// It is an empirical scaling fitted to the deployed model's score distribution,
// not a calibrated probability, and must stay fixed for comparability with
// historical outputs.
const ConfidenceSaturation = 3.0

// PredictionEngine runs the text -> features -> score pipeline.
// It holds only immutable state and is safe for concurrent use.
type PredictionEngine struct {
	vectorizer TextVectorizer
	scorer     LinearScorer
	logger     *zap.Logger
}

// NewPredictionEngine creates an engine over a fitted vectorizer and scorer
func NewPredictionEngine(vectorizer TextVectorizer, scorer LinearScorer, logger *zap.Logger) (*PredictionEngine, error) {
	if vectorizer == nil {
		return nil, &ArtifactLoadError{Artifact: "vectorizer", Err: fmt.Errorf("vectorizer is nil")}
	}
	if scorer == nil {
		return nil, &ArtifactLoadError{Artifact: "model", Err: fmt.Errorf("model is nil")}
	}
	if vectorizer.Dimension() != scorer.Dimension() {
		return nil, &ArtifactLoadError{
			Artifact: "model",
			Err: fmt.Errorf("feature space mismatch: vectorizer has %d features, model has %d coefficients",
				vectorizer.Dimension(), scorer.Dimension()),
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PredictionEngine{
		vectorizer: vectorizer,
		scorer:     scorer,
		logger:     logger,
	}, nil
}

// Dimension returns the size of the feature space
func (e *PredictionEngine) Dimension() int {
	return e.vectorizer.Dimension()
}

// Predict classifies raw email text
func (e *PredictionEngine) Predict(text string) (*PredictionResult, error) {
	cleaned := utils.Clean(text)

	vector, err := e.vectorizer.Transform(cleaned)
	if err != nil {
		return nil, &PredictionError{Err: fmt.Errorf("failed to vectorize text: %w", err)}
	}

	label, err := e.scorer.Predict(vector)
	if err != nil {
		return nil, &PredictionError{Err: fmt.Errorf("failed to predict label: %w", err)}
	}
	if label != LabelHam && label != LabelSpam {
		return nil, &PredictionError{Err: fmt.Errorf("unexpected class label %d", label)}
	}

	rawScore, err := e.scorer.DecisionFunction(vector)
	if err != nil {
		return nil, &PredictionError{Err: fmt.Errorf("failed to compute decision function: %w", err)}
	}
	if math.IsNaN(rawScore) {
		return nil, &PredictionError{Err: fmt.Errorf("decision function returned NaN")}
	}

	confidence := Confidence(rawScore)
	result := &PredictionResult{
		Prediction:           PredictionHam,
		Label:                label,
		Confidence:           confidence,
		ConfidencePercentage: confidence * 100,
		RawScore:             rawScore,
	}
	if label == LabelSpam {
		result.Prediction = PredictionSpam
	}

	e.logger.Debug("Prediction computed",
		zap.Int("cleaned_length", len(cleaned)),
		zap.Int("active_features", vector.NNZ()),
		zap.String("prediction", result.Prediction),
		zap.Float64("raw_score", rawScore))

	return result, nil
}

// PredictBatch classifies each text independently; one failure does not abort the rest
func (e *PredictionEngine) PredictBatch(texts []string) []BatchItem {
	items := make([]BatchItem, len(texts))
	for i, text := range texts {
		result, err := e.Predict(text)
		items[i] = BatchItem{Index: i, Result: result, Err: err}
	}
	return items
}

// Confidence maps a decision value onto [0, 1]
func Confidence(rawScore float64) float64 {
	return math.Min(1.0, math.Abs(rawScore)/ConfidenceSaturation)
}

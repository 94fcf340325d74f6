package core

import (
	"context"
	"time"
)

// TextVectorizer maps cleaned text into a fixed-size feature space
type TextVectorizer interface {
	// Transform vectorizes a single document
	Transform(text string) (*FeatureVector, error)

	// Dimension returns the size of the feature space
	Dimension() int
}

// LinearScorer is a fitted binary linear classifier
type LinearScorer interface {
	// Predict returns the class label for a feature vector
	Predict(v *FeatureVector) (int, error)

	// DecisionFunction returns the signed distance from the separating hyperplane
	DecisionFunction(v *FeatureVector) (float64, error)

	// Dimension returns the number of coefficients
	Dimension() int
}

// ArtifactSource fetches serialized model artifacts by name
type ArtifactSource interface {
	// Fetch returns the raw bytes of an artifact
	Fetch(ctx context.Context, name string) ([]byte, error)

	// Location describes where an artifact is read from, for logs and errors
	Location(name string) string
}

// HistoryRepository stores retained predictions
type HistoryRepository interface {
	// Add stores a record
	Add(ctx context.Context, record *HistoryRecord) error

	// List returns the most recent records in chronological order; limit <= 0 returns all
	List(ctx context.Context, limit int) ([]*HistoryRecord, error)

	// ListRange returns records with start <= timestamp <= end
	ListRange(ctx context.Context, start, end time.Time) ([]*HistoryRecord, error)

	// Clear removes every record
	Clear(ctx context.Context) error

	// Cleanup removes records older than the cutoff
	Cleanup(ctx context.Context, olderThan time.Time) error

	// CreatedAt returns when the store was initialised
	CreatedAt(ctx context.Context) (time.Time, error)
}

// PredictionObserver receives prediction outcomes, typically for metrics
type PredictionObserver interface {
	ObservePrediction(result *PredictionResult, duration time.Duration)
	ObserveFailure()
}

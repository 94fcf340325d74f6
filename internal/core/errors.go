package core

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactLoad marks failures to load the trained artifacts
	ErrArtifactLoad = errors.New("artifact load failure")
	// ErrPrediction marks failures inside the prediction pipeline
	ErrPrediction = errors.New("prediction failure")

	// ErrEmptyText is returned when the input text is blank
	ErrEmptyText = errors.New("email text cannot be empty")
	// ErrTextTooShort is returned when the input text is below the configured minimum
	ErrTextTooShort = errors.New("email text is too short")
	// ErrBatchSize is returned when a batch is empty or exceeds the configured maximum
	ErrBatchSize = errors.New("invalid batch size")
	// ErrNoHistory is returned by exports when nothing has been recorded
	ErrNoHistory = errors.New("no predictions to export")
)

// ArtifactLoadError reports a missing, corrupt or inconsistent artifact.
// The process must not serve traffic after one.
type ArtifactLoadError struct {
	Artifact string
	Location string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("failed to load %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("failed to load %s from %s: %v", e.Artifact, e.Location, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrArtifactLoad) hold for every ArtifactLoadError
func (e *ArtifactLoadError) Is(target error) bool {
	return target == ErrArtifactLoad
}

// PredictionError wraps an error raised while vectorizing or scoring
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPrediction) hold for every PredictionError
func (e *PredictionError) Is(target error) bool {
	return target == ErrPrediction
}

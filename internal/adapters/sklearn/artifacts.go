package sklearn

import (
	"context"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"go.uber.org/zap"
)

var (
	_ core.TextVectorizer = (*TfidfVectorizer)(nil)
	_ core.LinearScorer   = (*LinearSVC)(nil)
)

// Artifacts is a fitted vectorizer and classifier trained together
type Artifacts struct {
	Vectorizer *TfidfVectorizer
	Model      *LinearSVC
}

// Load fetches and decodes both artifacts. Every failure is an *core.ArtifactLoadError.
func Load(ctx context.Context, source core.ArtifactSource, vectorizerName, modelName string, logger *zap.Logger) (*Artifacts, error) {
	vectorizerData, err := source.Fetch(ctx, vectorizerName)
	if err != nil {
		return nil, &core.ArtifactLoadError{Artifact: "vectorizer", Location: source.Location(vectorizerName), Err: err}
	}
	vectorizer, err := LoadVectorizer(vectorizerData)
	if err != nil {
		return nil, &core.ArtifactLoadError{Artifact: "vectorizer", Location: source.Location(vectorizerName), Err: err}
	}

	modelData, err := source.Fetch(ctx, modelName)
	if err != nil {
		return nil, &core.ArtifactLoadError{Artifact: "model", Location: source.Location(modelName), Err: err}
	}
	model, err := LoadLinearSVC(modelData)
	if err != nil {
		return nil, &core.ArtifactLoadError{Artifact: "model", Location: source.Location(modelName), Err: err}
	}

	logger.Info("Model and vectorizer loaded",
		zap.String("vectorizer", source.Location(vectorizerName)),
		zap.String("model", source.Location(modelName)),
		zap.String("model_type", model.modelType),
		zap.Int("features", vectorizer.Dimension()))

	return &Artifacts{Vectorizer: vectorizer, Model: model}, nil
}

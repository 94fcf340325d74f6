package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/adapters/artifact"
	"github.com/coastguard/svm-spam-filter/internal/adapters/sklearn"
	"github.com/coastguard/svm-spam-filter/internal/config"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"go.uber.org/zap"
)

// artifactLoadTimeout bounds fetching both artifacts at startup
const artifactLoadTimeout = 2 * time.Minute

// EngineFactory loads the exported artifacts and builds the prediction engine
type EngineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config, logger *zap.Logger) *EngineFactory {
	return &EngineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateArtifactSource creates the artifact source selected by artifacts.source
// and returns the names of the vectorizer and model within it
func (f *EngineFactory) CreateArtifactSource(ctx context.Context) (core.ArtifactSource, string, string, error) {
	artifactsCfg := f.cfg.GetArtifacts()

	switch artifactsCfg.Source {
	case "file":
		return artifact.NewFileSource(""), artifactsCfg.VectorizerPath, artifactsCfg.ModelPath, nil
	case "s3":
		source, err := NewS3Factory(artifactsCfg.S3, f.logger).CreateArtifactSource(ctx)
		if err != nil {
			return nil, "", "", err
		}
		return source, artifactsCfg.S3.VectorizerKey, artifactsCfg.S3.ModelKey, nil
	default:
		return nil, "", "", fmt.Errorf("unsupported artifact source: %s", artifactsCfg.Source)
	}
}

// CreateArtifacts fetches and decodes the vectorizer and model
func (f *EngineFactory) CreateArtifacts() (*sklearn.Artifacts, error) {
	ctx, cancel := context.WithTimeout(context.Background(), artifactLoadTimeout)
	defer cancel()

	source, vectorizerName, modelName, err := f.CreateArtifactSource(ctx)
	if err != nil {
		return nil, err
	}
	return sklearn.Load(ctx, source, vectorizerName, modelName, f.logger)
}

// CreateEngine builds the prediction engine from loaded artifacts
func (f *EngineFactory) CreateEngine(artifacts *sklearn.Artifacts) (*core.PredictionEngine, error) {
	return core.NewPredictionEngine(artifacts.Vectorizer, artifacts.Model, f.logger)
}

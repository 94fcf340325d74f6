package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/coastguard/svm-spam-filter/internal/adapters/artifact"
	"github.com/coastguard/svm-spam-filter/internal/config"
	"go.uber.org/zap"
)

// S3Factory creates S3 artifact sources
type S3Factory struct {
	cfg    config.S3Config
	logger *zap.Logger
}

// NewS3Factory creates a new S3 factory
func NewS3Factory(cfg config.S3Config, logger *zap.Logger) *S3Factory {
	return &S3Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateArtifactSource creates an S3-backed artifact source using the default AWS credential chain
func (f *S3Factory) CreateArtifactSource(ctx context.Context) (*artifact.S3Source, error) {
	if f.cfg.Bucket == "" {
		return nil, fmt.Errorf("artifacts.s3.bucket is required for the s3 artifact source")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(f.cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return artifact.NewS3Source(client, f.cfg.Bucket, f.cfg.Prefix, f.logger), nil
}

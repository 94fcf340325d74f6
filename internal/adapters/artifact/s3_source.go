package artifact

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3GetObjectAPI is the subset of the S3 client used to fetch artifacts
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads artifacts from an S3 bucket.
// Names are object keys, joined under Prefix when one is set.
type S3Source struct {
	client  S3GetObjectAPI
	bucket  string
	prefix  string
	logger  *zap.Logger
	maxSize int64
}

// NewS3Source creates an S3 artifact source
func NewS3Source(client S3GetObjectAPI, bucket, prefix string, logger *zap.Logger) *S3Source {
	return &S3Source{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		logger:  logger,
		maxSize: 512 * 1024 * 1024,
	}
}

func (s *S3Source) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Fetch downloads an artifact object
func (s *S3Source) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("object %s exceeds %d bytes", key, s.maxSize)
	}

	s.logger.Debug("Fetched artifact from S3",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(data)))

	return data, nil
}

// Location returns the s3:// URI of an artifact
func (s *S3Source) Location(name string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(name))
}

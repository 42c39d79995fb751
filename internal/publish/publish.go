// Package publish uploads verified deployment archives to S3.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNoBucket is returned when publishing is attempted without a
// configured bucket.
var ErrNoBucket = errors.New("no publish bucket configured")

// Config holds S3 publish settings.
type Config struct {
	Bucket          string
	KeyPrefix       string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// s3API is the slice of the S3 client the publisher needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads archives to a fixed bucket and key prefix.
type Publisher struct {
	client s3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewPublisher creates a Publisher with static credentials.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})

	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.KeyPrefix,
		logger: logger.With("bucket", cfg.Bucket),
	}, nil
}

// Upload puts the archive into the bucket and returns the object key. The
// archive digest travels along as object metadata so deploy tooling can
// check integrity without downloading.
func (p *Publisher) Upload(ctx context.Context, archivePath, digest string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	key := path.Join(p.prefix, filepath.Base(archivePath))
	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/zip"),
	}
	if digest != "" {
		input.Metadata = map[string]string{"sha256": digest}
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s to s3://%s/%s: %w", archivePath, p.bucket, key, err)
	}

	p.logger.Info("archive published", "key", key, "sha256", digest)
	return key, nil
}

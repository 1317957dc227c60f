// Package storage archives bulk mutation payloads to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/config"
	"github.com/prostor/erpsync/internal/infrastructure/shopify"
)

const payloadContentType = "application/jsonl"

// Ensure S3PayloadArchive implements shopify.PayloadArchiver
var _ shopify.PayloadArchiver = (*S3PayloadArchive)(nil)

// Errors for storage configuration
var (
	ErrConfigRequired = errors.New("storage: configuration is required")
	ErrBucketRequired = errors.New("storage: bucket is required")
)

// S3PayloadArchive stores every JSONL variables file before it is staged.
// It works with AWS S3 and S3-compatible servers (MinIO, RustFS).
type S3PayloadArchive struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// Option configures S3PayloadArchive
type Option func(*S3PayloadArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *S3PayloadArchive) {
		a.logger = logger
	}
}

// WithClock replaces the time source used for object keys
func WithClock(now func() time.Time) Option {
	return func(a *S3PayloadArchive) {
		a.now = now
	}
}

// NewS3PayloadArchive creates an archive from configuration. Static
// credentials are used when configured, otherwise the default AWS chain.
func NewS3PayloadArchive(ctx context.Context, cfg *config.StorageConfig, opts ...Option) (*S3PayloadArchive, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	archive := &S3PayloadArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// Archive uploads payload under {prefix}/{kind}/{YYYY/MM/DD}/{timestamp}-{filename}
func (a *S3PayloadArchive) Archive(ctx context.Context, kind catalogsync.ChangeKind, filename string, payload []byte) error {
	key := a.ObjectKey(kind, filename)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String(payloadContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to archive payload to s3://%s/%s: %w", a.bucket, key, err)
	}

	a.logger.Debug("Payload archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// ObjectKey returns the key a payload archived now would be stored under
func (a *S3PayloadArchive) ObjectKey(kind catalogsync.ChangeKind, filename string) string {
	now := a.now().UTC()
	name := now.Format("20060102T150405Z") + "-" + path.Base(filename)
	return path.Join(a.prefix, kind.String(), now.Format("2006/01/02"), name)
}

// Bucket returns the target bucket
func (a *S3PayloadArchive) Bucket() string {
	return a.bucket
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/infrastructure/metrics"
)

const backendS3 = "s3"

// S3Storage keeps picture files in an S3-compatible bucket.
type S3Storage struct {
	bucket         string
	publicEndpoint string
	pathStyle      bool
	presignTTL     time.Duration
	client         *s3.Client
	presigner      *s3.PresignClient
	log            zerolog.Logger
}

// NewS3Storage creates the S3 backend. Static credentials are used when configured, otherwise
// the default AWS credential chain applies.
func NewS3Storage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*S3Storage, error) {
	logger := log.With().Str("component", "s3-storage").Logger()

	bucket := strings.TrimSpace(cfg.S3Bucket)
	if bucket == "" {
		return nil, errors.New("PICTURE_S3_BUCKET is not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
	})

	ttl := cfg.S3PresignTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	logger.Info().
		Str("bucket", bucket).
		Str("endpoint", cfg.S3Endpoint).
		Bool("public_endpoint", cfg.S3PublicEndpoint != "").
		Msg("s3 storage initialized")

	return &S3Storage{
		bucket:         bucket,
		publicEndpoint: strings.TrimRight(cfg.S3PublicEndpoint, "/"),
		pathStyle:      cfg.S3UsePathStyle,
		presignTTL:     ttl,
		client:         client,
		presigner:      s3.NewPresignClient(client),
		log:            logger,
	}, nil
}

func (s *S3Storage) Backend() string {
	return backendS3
}

func (s *S3Storage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (err error) {
	start := time.Now()
	defer func() { observe(backendS3, "upload", start, err) }()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	metrics.RecordUpload(contentType, size)
	s.log.Debug().Str("key", key).Int64("bytes", size).Msg("file uploaded to s3")
	return nil
}

// Delete removes the object. A missing object is not an error.
func (s *S3Storage) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { observe(backendS3, "delete", start, err) }()

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil
		}
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	s.log.Debug().Str("key", key).Msg("file deleted from s3")
	return nil
}

// PublicURL returns a plain URL under the public endpoint when one is configured, and a
// presigned GET URL otherwise.
func (s *S3Storage) PublicURL(ctx context.Context, key string) (string, error) {
	if s.publicEndpoint != "" {
		segments := strings.Split(key, "/")
		if s.pathStyle {
			segments = append([]string{s.bucket}, segments...)
		}
		return url.JoinPath(s.publicEndpoint, segments...)
	}

	start := time.Now()
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	observe(backendS3, "presign", start, err)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return req.URL, nil
}

// Health performs a HeadBucket request.
func (s *S3Storage) Health(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

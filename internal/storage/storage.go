package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/logger"
)

var Module = fx.Module("storage",
	fx.Provide(
		NewService,
		func(s *Service) ObjectStore { return s },
	),
)

// ErrDisabled is returned by every operation when no S3 endpoint is configured.
var ErrDisabled = errors.New("storage service not enabled")

// ObjectStore is the subset of storage the domain packages use.
type ObjectStore interface {
	Enabled() bool
	Put(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// UploadResult contains information about an uploaded object
type UploadResult struct {
	Key         string `json:"key"`
	Bucket      string `json:"bucket"`
	ETag        string `json:"etag,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// Service stores import archives and run reports in an S3-compatible bucket.
type Service struct {
	client *s3.Client
	bucket string
	log    *slog.Logger
}

// NewService creates a new storage service
func NewService(cfg *config.Config, log *slog.Logger) (*Service, error) {
	log = log.With(logger.Scope("storage"))
	sc := cfg.Storage

	if !sc.IsConfigured() {
		log.Warn("storage service disabled - no configuration provided")
		return &Service{bucket: sc.Bucket, log: log}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(sc.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			sc.AccessKeyID,
			sc.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := endpointURL(sc.Endpoint, sc.UseSSL)

	// Path-style addressing is required by MinIO.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	log.Info("storage service initialized",
		slog.String("endpoint", endpoint),
		slog.String("bucket", sc.Bucket),
	)

	return &Service{client: client, bucket: sc.Bucket, log: log}, nil
}

func endpointURL(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// Enabled returns true if the storage service is properly configured
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Put uploads data under key.
func (s *Service) Put(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	result, err := s.client.PutObject(ctx, input)
	if err != nil {
		s.log.Error("failed to upload object", slog.String("key", key), logger.Error(err))
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	etag := ""
	if result.ETag != nil {
		etag = strings.Trim(*result.ETag, "\"")
	}

	s.log.Debug("object uploaded",
		slog.String("key", key),
		slog.Int("size", len(data)),
	)

	return &UploadResult{
		Key:         key,
		Bucket:      s.bucket,
		ETag:        etag,
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// Get downloads the object stored under key.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to download object", slog.String("key", key), logger.Error(err))
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}

// Delete removes an object from storage
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return ErrDisabled
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to delete object", slog.String("key", key), logger.Error(err))
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// ObjectKey builds a storage key: {projectId}/{kind}/{uuid}-{sanitized_filename}
func ObjectKey(projectID, kind, filename string) string {
	return fmt.Sprintf("%s/%s/%s-%s", projectID, kind, uuid.New().String(), SanitizeFilename(filename))
}

var (
	unsafeChars     = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	repeatedUnderln = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename cleans a filename for storage
func SanitizeFilename(filename string) string {
	sanitized := unsafeChars.ReplaceAllString(filename, "_")
	sanitized = repeatedUnderln.ReplaceAllString(sanitized, "_")
	sanitized = strings.ToLower(strings.Trim(sanitized, "_"))

	if len(sanitized) > 200 {
		sanitized = sanitized[:200]
	}
	if sanitized == "" {
		return "unnamed"
	}
	return sanitized
}

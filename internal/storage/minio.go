package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"studio/internal/domain"
	"studio/internal/infra"
)

type MinioOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	Logger        *infra.Logger
}

// MinioStore writes to any S3-compatible endpoint (MinIO, Supabase Storage's S3 gateway).
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	logger        *infra.Logger
}

func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, domain.MissingConfig("STORAGE_ENDPOINT")
	}
	if opts.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	// minio-go expects host:port without a scheme.
	endpoint := strings.TrimPrefix(strings.TrimPrefix(opts.Endpoint, "https://"), "http://")
	endpoint = strings.TrimRight(endpoint, "/")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create minio client: %w", err)
	}

	base := opts.PublicBaseURL
	if base == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + endpoint + "/" + opts.Bucket
	}
	return &MinioStore{
		client:        client,
		bucket:        opts.Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		logger:        infra.NopLogger(opts.Logger),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info().Str("bucket", s.bucket).Msg("storage: bucket created")
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object %s: %w", objectKey, err)
	}
	s.logger.Debug().Str("key", objectKey).Int("bytes", len(data)).Msg("storage: object uploaded")
	return s.PublicURL(objectKey), nil
}

func (s *MinioStore) PublicURL(key string) string {
	return joinURL(s.publicBaseURL, key)
}

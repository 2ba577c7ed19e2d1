package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"studio/internal/infra"
)

type S3Options struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	Logger        *infra.Logger
}

// S3Store writes through the AWS SDK. A custom endpoint switches to path-style
// addressing for S3-compatible services.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        *infra.Logger
}

func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	s3opts := s3.Options{
		Region: region,
	}
	if opts.AccessKey != "" {
		s3opts.Credentials = awscreds.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
	}
	base := opts.PublicBaseURL
	if opts.Endpoint != "" {
		s3opts.BaseEndpoint = aws.String(opts.Endpoint)
		s3opts.UsePathStyle = true
		if base == "" {
			base = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
		}
	}
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, region)
	}
	return &S3Store{
		client:        s3.New(s3opts),
		bucket:        opts.Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		logger:        infra.NopLogger(opts.Logger),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object %s: %w", objectKey, err)
	}
	s.logger.Debug().Str("key", objectKey).Int("bytes", len(data)).Msg("storage: object uploaded")
	return s.PublicURL(objectKey), nil
}

func (s *S3Store) PublicURL(key string) string {
	return joinURL(s.publicBaseURL, key)
}

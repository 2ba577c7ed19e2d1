// Package storage uploads generated media to an object store and hands back
// the public URL third parties fetch it from.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio/internal/infra"
)

// ObjectStore persists bytes under a key and exposes them at a public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PublicURL(key string) string
}

// New picks the backend from STORAGE_DRIVER: "minio", "s3" or "file".
func New(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (ObjectStore, error) {
	logger = infra.NopLogger(logger)
	switch cfg.StorageDriver {
	case "file", "filesystem", "local":
		base := cfg.StoragePublicBaseURL
		if base == "" {
			base = cfg.AppHost + "/v1/files"
		}
		return NewFileStore(cfg.StoragePath, base)
	case "s3":
		return NewS3Store(S3Options{
			Endpoint:      cfg.StorageEndpoint,
			Region:        cfg.StorageRegion,
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			Bucket:        cfg.StorageBucket,
			PublicBaseURL: cfg.StoragePublicBaseURL,
			Logger:        logger,
		})
	case "minio", "":
		store, err := NewMinioStore(MinioOptions{
			Endpoint:      cfg.StorageEndpoint,
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			Bucket:        cfg.StorageBucket,
			UseSSL:        cfg.StorageUseSSL,
			PublicBaseURL: cfg.StoragePublicBaseURL,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Str("bucket", cfg.StorageBucket).Msg("storage: ensure bucket failed")
		}
		return store, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.StorageDriver)
	}
}

// ObjectKey builds a unique key under prefix, e.g. "tiktok/<user>/<uuid>.mp4".
func ObjectKey(prefix, contentType string) string {
	ext := ""
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		ext = exts[len(exts)-1]
	}
	switch contentType {
	case "video/mp4":
		ext = ".mp4"
	case "image/jpeg":
		ext = ".jpg"
	}
	return path.Join(strings.Trim(prefix, "/"), uuid.NewString()+ext)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

package social

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"studio/internal/storage"
)

// ErrUnsupportedMedia is returned for media that is neither a public URL nor
// inline data.
var ErrUnsupportedMedia = errors.New("video must be a public http(s) URL or a data: URL")

// MediaUploader makes media reachable by the platforms' pull-from-URL APIs.
type MediaUploader struct {
	store storage.ObjectStore
}

func NewMediaUploader(store storage.ObjectStore) *MediaUploader {
	return &MediaUploader{store: store}
}

// EnsurePublic returns ref unchanged when it is already a public http(s) URL
// and uploads data: URLs to the object store.
func (m *MediaUploader) EnsurePublic(ctx context.Context, prefix, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != "" && !isLocalHost(u.Hostname()) {
		return ref, nil
	}
	if strings.HasPrefix(ref, "data:") {
		data, contentType, err := decodeDataURL(ref)
		if err != nil {
			return "", err
		}
		return m.Upload(ctx, prefix, data, contentType)
	}
	return "", ErrUnsupportedMedia
}

// Upload stores raw bytes and returns their public URL.
func (m *MediaUploader) Upload(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	if m == nil || m.store == nil {
		return "", errors.New("no object store configured for media uploads")
	}
	if len(data) == 0 {
		return "", errors.New("video is empty")
	}
	if contentType == "" {
		contentType = "video/mp4"
	}
	u, err := m.store.Put(ctx, storage.ObjectKey(prefix, contentType), data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	return u, nil
}

func decodeDataURL(ref string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: malformed data URL", ErrUnsupportedMedia)
	}
	parts := strings.Split(meta, ";")
	contentType := parts[0]
	isBase64 := false
	for _, p := range parts[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}
	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
		}
		return []byte(decoded), contentType, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid base64 payload", ErrUnsupportedMedia)
	}
	return data, contentType, nil
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studio/internal/domain"
	"studio/internal/infra"
)

func TestFileStorePutReturnsPublicURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/v1/files/")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	url, err := store.Put(context.Background(), "/tiktok/u1/clip.mp4", []byte("video"), "video/mp4")
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if url != "http://localhost:8080/v1/files/tiktok/u1/clip.mp4" {
		t.Fatalf("url = %q", url)
	}
	got, err := os.ReadFile(filepath.Join(dir, "tiktok", "u1", "clip.mp4"))
	if err != nil || string(got) != "video" {
		t.Fatalf("file = %q err = %v", got, err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://x")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	for _, key := range []string{"../escape", "a/../../b", ""} {
		if _, err := store.Put(context.Background(), key, nil, ""); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("/instagram/u1/", "video/mp4")
	if !strings.HasPrefix(key, "instagram/u1/") || !strings.HasSuffix(key, ".mp4") {
		t.Fatalf("key = %q", key)
	}
	if ObjectKey("p", "video/mp4") == ObjectKey("p", "video/mp4") {
		t.Fatal("keys are not unique")
	}
}

func TestNewMinioRequiresEndpoint(t *testing.T) {
	cfg := &infra.Config{StorageDriver: "minio", StorageBucket: "social-media-assets"}
	if _, err := New(context.Background(), cfg, nil); !errors.Is(err, domain.ErrMissingConfig) {
		t.Fatalf("err = %v, want ErrMissingConfig", err)
	}
}

func TestNewS3PublicURL(t *testing.T) {
	store, err := NewS3Store(S3Options{Bucket: "social-media-assets", Region: "ap-southeast-1"})
	if err != nil {
		t.Fatalf("NewS3Store returned error: %v", err)
	}
	if got := store.PublicURL("a/b.mp4"); got != "https://social-media-assets.s3.ap-southeast-1.amazonaws.com/a/b.mp4" {
		t.Fatalf("PublicURL = %q", got)
	}
	custom, _ := NewS3Store(S3Options{Bucket: "b", Endpoint: "https://proj.supabase.co/storage/v1/s3"})
	if got := custom.PublicURL("k"); got != "https://proj.supabase.co/storage/v1/s3/b/k" {
		t.Fatalf("PublicURL = %q", got)
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), &infra.Config{StorageDriver: "ftp"}, nil); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestFileStoreHandlerServesObjectsOnly(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://x/v1/files")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if _, err := store.Put(context.Background(), "sites/s1/index.html", []byte("<h1>hi</h1>"), "text/html"); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sites", ".upload-123"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	h := store.Handler()
	cases := []struct {
		path string
		code int
	}{
		{"/sites/s1/index.html", http.StatusOK},
		{"/sites/s1/", http.StatusNotFound},
		{"/sites/.upload-123", http.StatusNotFound},
		{"/../etc/passwd", http.StatusNotFound},
		{"/missing.mp4", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = tc.path
		h.ServeHTTP(rec, req)
		if rec.Code != tc.code {
			t.Fatalf("%s: status = %d, want %d", tc.path, rec.Code, tc.code)
		}
		if tc.code == http.StatusOK {
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Fatalf("content type = %q", ct)
			}
			if rec.Body.String() != "<h1>hi</h1>" {
				t.Fatalf("body = %q", rec.Body.String())
			}
		}
	}
}

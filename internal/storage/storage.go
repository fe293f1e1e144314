package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/fundraiseer/apiserver/config"
	"github.com/google/uuid"
)

var (
	// ErrObjectNotFound is returned by Get when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrUnsupportedType is returned for uploads that are not images.
	ErrUnsupportedType = errors.New("unsupported content type")
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// CacheControl is stored with every upload. Avatar keys are never reused, so
// an object may be cached for as long as clients like.
const CacheControl = "public, max-age=31536000, immutable"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Storage keeps user uploads in an ObjectStorage backend and maps object
// keys to the public URLs served under PublicBaseURL.
type Storage struct {
	backend       ObjectStorage
	publicBaseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	return &Storage{backend: backend, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "minio":
		backend, err = NewMinioBackend(cfg.Minio)
	case "gcs":
		backend, err = NewGCSBackend(ctx, cfg.GCS)
	case "s3":
		backend, err = NewS3Client(ctx, cfg.S3)
	case "memory":
		backend = NewMemory("uploads")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewStorage(backend, cfg.PublicBaseURL), nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// PutAvatar stores an image under a fresh key for userID and returns its
// public URL.
func (s *Storage) PutAvatar(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (string, error) {
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	key := path.Join("avatars", userID, uuid.NewString()+ext)
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// DeleteURL removes the object behind a URL produced by URL. Foreign URLs
// are ignored.
func (s *Storage) DeleteURL(ctx context.Context, url string) error {
	key, ok := s.KeyFromURL(url)
	if !ok {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// URL returns the public URL of key.
func (s *Storage) URL(key string) string {
	return s.publicBaseURL + "/" + key
}

// KeyFromURL reverses URL.
func (s *Storage) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.publicBaseURL+"/")
	if !ok || key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/fundraiseer/apiserver/config"
	"google.golang.org/api/option"
)

// GCSBackend keeps avatars in a Cloud Storage bucket.
type GCSBackend struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

func NewGCSBackend(ctx context.Context, cfg config.GCSConfig) (*GCSBackend, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSBackend{client: client, bucket: client.Bucket(name), name: name, projectID: cfg.ProjectID}, nil
}

// EnsureBucket creates a missing bucket. Creation needs GCS_PROJECT_ID.
func (g *GCSBackend) EnsureBucket(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return fmt.Errorf("check bucket %s: %w", g.name, err)
	case strings.TrimSpace(g.projectID) == "":
		return fmt.Errorf("bucket %s does not exist and no project id is set to create it", g.name)
	}
	if err := g.bucket.Create(ctx, g.projectID, nil); err != nil {
		return fmt.Errorf("create bucket %s: %w", g.name, err)
	}
	return nil
}

// Put uploads in a single request when the size is known to fit one chunk,
// which covers every avatar the API accepts.
func (g *GCSBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = CacheControl
	if size > 0 && size <= int64(w.ChunkSize) {
		w.ChunkSize = 0
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rd, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// Delete is a no-op for keys that are already gone.
func (g *GCSBackend) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (g *GCSBackend) Bucket() string { return g.name }

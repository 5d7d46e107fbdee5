package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/hugh/nerlude/pkg/config"
	"google.golang.org/api/option"
)

// GCSStore stores objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSStore(ctx context.Context, cfg *config.StorageConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs storage requires STORAGE_BUCKET")
	}

	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	return &GCSStore{client: client, bucket: cfg.Bucket}, nil
}

func (g *GCSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("writing gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gcs object: %w", err)
	}
	return nil
}

func (g *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading gcs object: %w", err)
	}
	return rc, nil
}

func (g *GCSStore) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("deleting gcs object: %w", err)
	}
	return nil
}

func (g *GCSStore) Close() error {
	return g.client.Close()
}

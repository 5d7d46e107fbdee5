// Package storage holds uploaded asset bytes in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hugh/nerlude/pkg/config"
)

var ErrNotFound = errors.New("object not found")

// ObjectStore is the minimal blob API the asset handlers need.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Compile-time interface satisfaction checks
var (
	_ ObjectStore = (*MemoryStore)(nil)
	_ ObjectStore = (*S3Store)(nil)
	_ ObjectStore = (*GCSStore)(nil)
)

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", "memory":
		logger.Warn("using in-memory object storage, uploads are lost on restart")
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	case "gcs":
		return NewGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

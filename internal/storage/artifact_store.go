package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"video-share-service/internal/config"
	"video-share-service/internal/logger"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ArtifactStore is the object storage capability. Each implementation is bound
// to a single bucket.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (int64, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
	Bucket() string
}

// PutFile uploads a local file under key.
func PutFile(ctx context.Context, store ArtifactStore, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return store.Put(ctx, key, f, info.Size(), contentType)
}

// NewArtifactStore builds the store selected by cfg.Type.
func NewArtifactStore(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (ArtifactStore, error) {
	switch cfg.Type {
	case "", "minio":
		return NewMinioStore(ctx, cfg, log)
	case "s3":
		return NewS3Store(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

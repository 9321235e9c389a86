// Package storage persists task result artifacts (scrape JSON and CSV blobs)
// behind a small key/value interface. Artifacts are written once per task and
// never mutated; a superseding task may overwrite the same key.
package storage

import (
	"context"
	"fmt"
	"io"

	"ritasuite/internal/infra"
)

// Store persists immutable artifacts under sanitized relative keys.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New selects a store implementation from configuration: "fs" (default) or
// "s3".
func New(ctx context.Context, cfg *infra.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "", "fs":
		return NewFileStore(cfg.StoragePath)
	case "s3":
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
}

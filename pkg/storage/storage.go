// Package storage stores synthesized audio clips and exposes them by
// URL. Local disk is the default; S3/MinIO is available for
// multi-node deployments.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for clip storage operations.
type Storage interface {
	// Write stores content from the reader under the given key.
	// size is the expected content size (-1 if unknown).
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key. The caller closes
	// the returned ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content with the given key.
	Delete(ctx context.Context, key string) error

	// Exists checks if content with the given key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL for accessing the content. For local
	// storage this is a path served by the HTTP layer; for S3 it is
	// a presigned URL valid for the given duration.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Config selects and configures a storage backend.
type Config struct {
	Driver string      `mapstructure:"driver"` // local, s3
	Local  LocalConfig `mapstructure:"local"`
	S3     S3Config    `mapstructure:"s3"`
}

// New builds a Storage from config.
func New(ctx context.Context, cfg Config) (Storage, error) {
	if cfg.Driver == "s3" {
		return NewS3Storage(ctx, cfg.S3)
	}
	return NewLocalStorage(cfg.Local)
}

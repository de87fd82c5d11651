// Package blob stores the device document. The device itself polls the
// same object, so there is exactly one key in practice; backends are
// keyed anyway to keep the interface honest.
package blob

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key was never written.
var ErrNotFound = errors.New("blob: not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

type Backend string

const (
	BackendGCS    Backend = "gcs"
	BackendDir    Backend = "dir"
	BackendMemory Backend = "memory"
)

type Config struct {
	Backend Backend
	// Bucket is the GCS bucket name.
	Bucket string
	// Credentials is a service account JSON key, raw or base64 wrapped.
	// Application default credentials are used when empty.
	Credentials string
	// Dir is the root of the dir backend.
	Dir string
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendGCS:
		return NewGCS(ctx, cfg.Bucket, cfg.Credentials)
	case BackendDir:
		return NewDir(cfg.Dir)
	case BackendMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("blob: unknown backend %q", cfg.Backend)
	}
}

package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket. Objects are
// written uncached so the polling device sees a new document right away.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

var _ Store = (*GCS)(nil)

func NewGCS(ctx context.Context, bucket, credentials string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("blob: gcs backend needs a bucket")
	}

	var opts []option.ClientOption
	if credentials != "" {
		key, err := decodeCredentials(credentials)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(key))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: creating gcs client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// decodeCredentials accepts a service account key as JSON or as base64
// wrapped JSON.
func decodeCredentials(credentials string) ([]byte, error) {
	trimmed := strings.TrimSpace(credentials)
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("blob: gcs credentials are neither JSON nor base64: %w", err)
	}
	return decoded, nil
}

func (g *GCS) Bucket() string {
	return g.name
}

func (g *GCS) Put(ctx context.Context, key string, data []byte) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache, max-age=0"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("blob: writing gs://%s/%s: %w", g.name, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob: committing gs://%s/%s: %w", g.name, key, err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blob: reading gs://%s/%s: %w", g.name, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blob: reading gs://%s/%s: %w", g.name, key, err)
	}
	return data, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

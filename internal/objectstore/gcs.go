package objectstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// GCSProvider implements Provider for Google Cloud Storage. Authentication
// is handled via Application Default Credentials.
type GCSProvider struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSProvider initializes a GCS client and verifies bucket access so a
// misconfigured deployment fails on startup rather than mid-cycle.
func NewGCSProvider(ctx context.Context, bucket string, logger *zap.Logger) (*GCSProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("failed to close GCS client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("get GCS bucket %q attributes: %w", bucket, err)
	}

	return &GCSProvider{client: client, bucket: bucket, logger: logger}, nil
}

func (g *GCSProvider) Exists(ctx context.Context, key string) (bool, error) {
	prefix, wildcard := splitWildcard(key)
	if !wildcard {
		_, err := g.client.Bucket(g.bucket).Object(prefix).Attrs(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("get GCS object %q attributes: %w", prefix, err)
		}
		return true, nil
	}

	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("list GCS objects with prefix %q: %w", prefix, err)
	}
	return true, nil
}

func (g *GCSProvider) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	wc := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		if cerr := wc.Close(); cerr != nil {
			g.logger.Warn("failed to close GCS writer after write failure", zap.Error(cerr))
		}
		return fmt.Errorf("write GCS object %q: %w", key, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close GCS writer for object %q: %w", key, err)
	}
	return nil
}

func (g *GCSProvider) Close() error { return g.client.Close() }

// Package objectstore defines the blob storage interface the ingest
// pipeline writes disclosures to. The abstraction keeps the pipeline
// independent of the concrete backend (MinIO, Google Cloud Storage, or an
// in-memory store for tests).
package objectstore

import (
	"context"
	"strings"
)

// Provider is the common interface for a disclosure blob store.
//
// Exists supports two key shapes: a plain key is checked exactly, while a
// key ending in '*' matches any object whose name starts with the prefix
// before the '*'. The wildcard form lets callers detect a stored
// disclosure without knowing which file extension normalization chose.
type Provider interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Close() error
}

// splitWildcard returns (prefix, true) for wildcard keys and (key, false)
// for exact ones.
func splitWildcard(key string) (string, bool) {
	if strings.HasSuffix(key, "*") {
		return strings.TrimSuffix(key, "*"), true
	}
	return key, false
}

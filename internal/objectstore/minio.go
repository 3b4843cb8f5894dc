package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig parameterizes the S3-compatible provider.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioProvider implements Provider on any S3-compatible endpoint.
type MinioProvider struct {
	client *minio.Client
	bucket string
}

// NewMinioProvider connects to the endpoint and ensures the bucket exists,
// failing fast on startup if the credentials or endpoint are wrong.
func NewMinioProvider(ctx context.Context, cfg MinioConfig) (*MinioProvider, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinioProvider{client: client, bucket: cfg.Bucket}, nil
}

func (p *MinioProvider) Exists(ctx context.Context, key string) (bool, error) {
	prefix, wildcard := splitWildcard(key)
	if !wildcard {
		_, err := p.client.StatObject(ctx, p.bucket, prefix, minio.StatObjectOptions{})
		if err != nil {
			if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
				return false, nil
			}
			return false, fmt.Errorf("stat object %q: %w", prefix, err)
		}
		return true, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{Prefix: prefix, MaxKeys: 1}) {
		if obj.Err != nil {
			return false, fmt.Errorf("list objects with prefix %q: %w", prefix, obj.Err)
		}
		return true, nil
	}
	return false, nil
}

func (p *MinioProvider) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload object %q: %w", key, err)
	}
	return nil
}

// Close is a no-op; the minio client holds no persistent connections that
// need explicit teardown.
func (p *MinioProvider) Close() error { return nil }

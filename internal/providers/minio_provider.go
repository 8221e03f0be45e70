package providers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOProvider implements the StorageProvider interface for MinIO.
type MinIOProvider struct {
	client *minio.Client
	config *StorageConfig
}

// NewMinIOProvider creates a new MinIO provider.
func NewMinIOProvider(cfg *StorageConfig) (*MinIOProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid MinIO config: %w", err)
	}

	// Extract endpoint without protocol for MinIO client
	endpoint := cfg.Endpoint
	if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		cfg.UseSSL = false
	} else if strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimPrefix(endpoint, "https://")
		cfg.UseSSL = true
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, NewStorageError("minio", "configure", "", err)
	}

	return &MinIOProvider{
		client: minioClient,
		config: cfg,
	}, nil
}

// EnsureBucket creates the configured bucket when it does not exist.
func (p *MinIOProvider) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.config.Bucket)
	if err != nil {
		return NewStorageError("minio", "bucket_exists", "", err)
	}
	if exists {
		return nil
	}

	err = p.client.MakeBucket(ctx, p.config.Bucket, minio.MakeBucketOptions{
		Region: p.config.Region,
	})
	if err != nil {
		// Lost the race against a concurrent create
		exists, existsErr := p.client.BucketExists(ctx, p.config.Bucket)
		if existsErr == nil && exists {
			return nil
		}
		return NewStorageError("minio", "make_bucket", "", err)
	}

	return nil
}

// Upload writes data directly to the specified key.
func (p *MinIOProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error) {
	info, err := p.client.PutObject(ctx, p.config.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, NewStorageError("minio", "upload", key, err)
	}

	return &UploadResult{
		Key:       key,
		PublicURL: p.PublicURL(key),
		Size:      info.Size,
		ETag:      info.ETag,
		Provider:  "minio",
	}, nil
}

// PresignPut produces a signed, time-limited PUT URL for key.
func (p *MinIOProvider) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (*SignedUpload, error) {
	signed, err := p.client.PresignedPutObject(ctx, p.config.Bucket, key, expires)
	if err != nil {
		return nil, NewStorageError("minio", "presign_put", key, err)
	}

	return &SignedUpload{
		URL:    signed.String(),
		Method: "PUT",
		Headers: map[string]string{
			"Content-Type": contentType,
		},
		ExpiresAt: time.Now().Add(expires),
	}, nil
}

// PublicURL returns the public URL for accessing the object at key.
func (p *MinIOProvider) PublicURL(key string) string {
	return p.config.GetPublicURL(key)
}

// HealthCheck verifies the provider connection and configuration.
func (p *MinIOProvider) HealthCheck(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.config.Bucket)
	if err != nil {
		return NewStorageError("minio", "health_check", "", err)
	}
	if !exists {
		return NewStorageError("minio", "health_check", "", ErrBucketNotFound)
	}
	return nil
}

package providers

import (
	"context"
	"io"
	"time"
)

// StorageProvider is the capability surface the upload service needs from an
// S3-compatible object store: idempotent bucket provisioning, direct writes,
// and time-limited signed PUT URLs.
type StorageProvider interface {
	// EnsureBucket creates the configured bucket when it does not exist.
	EnsureBucket(ctx context.Context) error

	// Upload writes data directly to the specified key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// PresignPut produces a signed, time-limited PUT URL for key.
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (*SignedUpload, error)

	// PublicURL returns the public URL for accessing the object at key.
	PublicURL(key string) string

	// HealthCheck verifies the provider connection and configuration.
	HealthCheck(ctx context.Context) error
}

// SignedUpload describes a grant for one client-side PUT.
type SignedUpload struct {
	// URL is the signed upload URL; valid until ExpiresAt.
	URL string `json:"url"`

	// Token is an opaque upload token, when the provider issues one.
	Token string `json:"token,omitempty"`

	// Method is the HTTP method the client must use.
	Method string `json:"method"`

	// Headers the client must send with the upload.
	Headers map[string]string `json:"headers"`

	// ExpiresAt is when the signed URL stops working.
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadResult describes a completed direct upload.
type UploadResult struct {
	Key       string `json:"key"`
	PublicURL string `json:"url"`
	Size      int64  `json:"size"`
	ETag      string `json:"etag"`
	Provider  string `json:"provider"`
}

// ProviderType represents the supported storage provider types.
type ProviderType string

const (
	ProviderAWS          ProviderType = "aws"
	ProviderMinIO        ProviderType = "minio"
	ProviderBackblaze    ProviderType = "backblaze"
	ProviderDigitalOcean ProviderType = "digitalocean"
	ProviderCloudflare   ProviderType = "cloudflare"
	ProviderWasabi       ProviderType = "wasabi"
)

// StorageConfig contains connection settings for a storage provider.
type StorageConfig struct {
	// Provider type (aws, minio, backblaze, etc.)
	Provider ProviderType `json:"provider"`

	// Endpoint URL (e.g. https://s3.amazonaws.com)
	Endpoint string `json:"endpoint"`

	// PublicEndpoint for generating public URLs
	PublicEndpoint string `json:"public_endpoint"`

	// Region for AWS and compatible services
	Region string `json:"region"`

	// Bucket name
	Bucket string `json:"bucket"`

	// AccessKey for authentication
	AccessKey string `json:"access_key"`

	// SecretKey for authentication
	SecretKey string `json:"secret_key"`

	// UseSSL determines if HTTPS should be used
	UseSSL bool `json:"use_ssl"`

	// PathStyle forces path-style URLs (for MinIO compatibility)
	PathStyle bool `json:"path_style"`
}

// Validate checks if the StorageConfig is usable.
func (c *StorageConfig) Validate() error {
	if c.Provider == "" {
		return ErrInvalidProvider
	}
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Bucket == "" {
		return ErrMissingBucket
	}
	if c.AccessKey == "" {
		return ErrMissingAccessKey
	}
	if c.SecretKey == "" {
		return ErrMissingSecretKey
	}
	return nil
}

// GetPublicURL generates a public URL for the given key.
func (c *StorageConfig) GetPublicURL(key string) string {
	if c.PublicEndpoint != "" {
		if c.PathStyle {
			return c.PublicEndpoint + "/" + c.Bucket + "/" + key
		}
		return c.PublicEndpoint + "/" + key
	}

	if c.PathStyle {
		return c.Endpoint + "/" + c.Bucket + "/" + key
	}
	return "https://" + c.Bucket + "." + trimScheme(c.Endpoint) + "/" + key
}

func trimScheme(endpoint string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(endpoint) > len(prefix) && endpoint[:len(prefix)] == prefix {
			return endpoint[len(prefix):]
		}
	}
	return endpoint
}

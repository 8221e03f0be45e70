package providers

import (
	"fmt"
	"strings"
)

// ProviderFactory creates StorageProvider instances based on configuration.
type ProviderFactory struct{}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{}
}

// CreateProvider creates a StorageProvider based on the configuration.
func (f *ProviderFactory) CreateProvider(config *StorageConfig) (StorageProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("storage config cannot be nil")
	}

	// Normalize provider name
	providerType := ProviderType(strings.ToLower(string(config.Provider)))

	switch providerType {
	case ProviderAWS:
		return NewAWSProvider(config)
	case ProviderMinIO:
		return NewMinIOProvider(config)
	case ProviderBackblaze:
		return NewBackblazeProvider(config)
	case ProviderDigitalOcean:
		// DigitalOcean Spaces is S3-compatible, use AWS provider with custom endpoint
		return NewDigitalOceanProvider(config)
	case ProviderCloudflare:
		// Cloudflare R2 is S3-compatible, use AWS provider with custom endpoint
		return NewCloudflareProvider(config)
	case ProviderWasabi:
		// Wasabi is S3-compatible, use AWS provider with custom endpoint
		return NewWasabiProvider(config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotSupported, config.Provider)
	}
}

// GetSupportedProviders returns a list of supported provider types.
func (f *ProviderFactory) GetSupportedProviders() []ProviderType {
	return []ProviderType{
		ProviderAWS,
		ProviderMinIO,
		ProviderBackblaze,
		ProviderDigitalOcean,
		ProviderCloudflare,
		ProviderWasabi,
	}
}

// IsProviderSupported checks if a provider type is supported.
func (f *ProviderFactory) IsProviderSupported(providerType ProviderType) bool {
	for _, p := range f.GetSupportedProviders() {
		if p == providerType {
			return true
		}
	}
	return false
}

// NewBackblazeProvider creates a new Backblaze B2 provider.
// Backblaze B2 is S3-compatible, so we use the AWS provider.
func NewBackblazeProvider(cfg *StorageConfig) (*AWSProvider, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if !strings.Contains(cfg.Endpoint, "backblazeb2.com") {
		return nil, fmt.Errorf("invalid Backblaze B2 endpoint: %s", cfg.Endpoint)
	}
	if cfg.Region == "" {
		// Region is embedded in the endpoint, e.g. s3.us-west-004.backblazeb2.com
		parts := strings.Split(trimScheme(cfg.Endpoint), ".")
		if len(parts) >= 3 {
			cfg.Region = parts[1]
		}
	}
	cfg.PathStyle = true

	return NewAWSProvider(cfg)
}

// NewDigitalOceanProvider creates a new DigitalOcean Spaces provider.
// DigitalOcean Spaces is S3-compatible, so we use the AWS provider.
func NewDigitalOceanProvider(cfg *StorageConfig) (*AWSProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "nyc3"
	}
	cfg.PathStyle = false

	return NewAWSProvider(cfg)
}

// NewCloudflareProvider creates a new Cloudflare R2 provider.
// Cloudflare R2 is S3-compatible, so we use the AWS provider.
func NewCloudflareProvider(cfg *StorageConfig) (*AWSProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	cfg.PathStyle = false

	return NewAWSProvider(cfg)
}

// NewWasabiProvider creates a new Wasabi provider.
// Wasabi is S3-compatible, so we use the AWS provider.
func NewWasabiProvider(cfg *StorageConfig) (*AWSProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	cfg.PathStyle = false

	return NewAWSProvider(cfg)
}

package config

import (
	"fmt"
	"log"
	"strings"

	"face-shape-api/internal/providers"
)

// StorageConfiguration holds all object-storage settings.
type StorageConfiguration struct {
	// Enable storage-backed upload grants
	Enabled bool `json:"enabled"`

	// Provider configuration
	Provider       providers.ProviderType `json:"provider"`
	Endpoint       string                 `json:"endpoint"`
	PublicEndpoint string                 `json:"public_endpoint"`
	Region         string                 `json:"region"`
	Bucket         string                 `json:"bucket"`
	AccessKey      string                 `json:"access_key"`
	SecretKey      string                 `json:"secret_key"`

	// Connection settings
	UseSSL    bool `json:"use_ssl"`
	PathStyle bool `json:"path_style"`

	// Key generation settings
	KeyPrefix string `json:"key_prefix"`

	// Security settings
	MaxFileBytes int64 `json:"max_file_bytes"`
}

// LoadStorageConfig loads storage configuration from environment variables.
func LoadStorageConfig() *StorageConfiguration {
	config := &StorageConfiguration{
		Enabled:        getBool("STORAGE_ENABLED", true),
		Provider:       providers.ProviderType(getEnv("STORAGE_PROVIDER", "aws")),
		Endpoint:       getEnv("STORAGE_ENDPOINT", "https://s3.amazonaws.com"),
		PublicEndpoint: getEnv("STORAGE_PUBLIC_ENDPOINT", ""),
		Region:         getEnv("STORAGE_REGION", "us-east-1"),
		Bucket:         getEnv("STORAGE_BUCKET", ""),
		AccessKey:      getEnv("STORAGE_ACCESS_KEY", ""),
		SecretKey:      getEnv("STORAGE_SECRET_KEY", ""),
		UseSSL:         getBool("STORAGE_USE_SSL", true),
		PathStyle:      getBool("STORAGE_PATH_STYLE", false),
		KeyPrefix:      getEnv("STORAGE_KEY_PREFIX", "uploads/"),
		MaxFileBytes:   getInt64("MAX_FILE_BYTES", 5*1024*1024),
	}

	config.applyProviderDefaults()

	return config
}

// applyProviderDefaults sets provider-specific default values.
func (c *StorageConfiguration) applyProviderDefaults() {
	switch c.Provider {
	case providers.ProviderAWS:
		if c.Endpoint == "" {
			c.Endpoint = "https://s3.amazonaws.com"
		}
		c.PathStyle = false // AWS S3 prefers virtual-hosted style

	case providers.ProviderMinIO:
		c.PathStyle = true // MinIO typically uses path-style
		if c.PublicEndpoint == "" && c.Endpoint != "" {
			c.PublicEndpoint = c.Endpoint
		}

	case providers.ProviderBackblaze:
		c.PathStyle = true // Backblaze B2 uses path-style
		if c.Region == "" {
			c.Region = "us-west-000"
		}

	case providers.ProviderDigitalOcean:
		c.PathStyle = false
		if c.Region == "" {
			c.Region = "nyc3"
		}

	case providers.ProviderCloudflare:
		c.PathStyle = false
		if c.Region == "" {
			c.Region = "auto"
		}

	case providers.ProviderWasabi:
		c.PathStyle = false
		if c.Region == "" {
			c.Region = "us-east-1"
		}
	}
}

// ToProviderConfig converts StorageConfiguration to providers.StorageConfig.
func (c *StorageConfiguration) ToProviderConfig() *providers.StorageConfig {
	return &providers.StorageConfig{
		Provider:       c.Provider,
		Endpoint:       c.Endpoint,
		PublicEndpoint: c.PublicEndpoint,
		Region:         c.Region,
		Bucket:         c.Bucket,
		AccessKey:      c.AccessKey,
		SecretKey:      c.SecretKey,
		UseSSL:         c.UseSSL,
		PathStyle:      c.PathStyle,
	}
}

// Validate checks if the storage configuration is valid.
func (c *StorageConfiguration) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Provider == "" {
		return fmt.Errorf("STORAGE_PROVIDER is required when storage is enabled")
	}

	if c.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required when storage is enabled")
	}

	if c.AccessKey == "" {
		return fmt.Errorf("STORAGE_ACCESS_KEY is required when storage is enabled")
	}

	if c.SecretKey == "" {
		return fmt.Errorf("STORAGE_SECRET_KEY is required when storage is enabled")
	}

	if c.Endpoint == "" {
		return fmt.Errorf("STORAGE_ENDPOINT is required when storage is enabled")
	}

	switch c.Provider {
	case providers.ProviderAWS, providers.ProviderDigitalOcean, providers.ProviderWasabi:
		if c.Region == "" {
			return fmt.Errorf("STORAGE_REGION is required for %s provider", c.Provider)
		}

	case providers.ProviderBackblaze:
		if !strings.Contains(c.Endpoint, "backblazeb2.com") {
			return fmt.Errorf("invalid Backblaze B2 endpoint: %s", c.Endpoint)
		}
	}

	return nil
}

// PrintStorageConfig logs the current storage configuration (without sensitive data).
func (c *StorageConfiguration) PrintStorageConfig() {
	if !c.Enabled {
		log.Println("Storage: Disabled")
		return
	}

	log.Println("===========================================")
	log.Println("Storage Configuration")
	log.Println("===========================================")
	log.Printf("Provider:         %s", c.Provider)
	log.Printf("Endpoint:         %s", c.Endpoint)
	log.Printf("Region:           %s", c.Region)
	log.Printf("Bucket:           %s", c.Bucket)
	log.Printf("Public Endpoint:  %s", c.PublicEndpoint)
	log.Printf("Path Style:       %t", c.PathStyle)
	log.Printf("Key Prefix:       %s", c.KeyPrefix)
	log.Printf("Max File Size:    %dMB", c.MaxFileBytes/1024/1024)
	log.Println("===========================================")
}

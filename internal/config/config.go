package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port         string
	AppEnv       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BodyLimit    int

	// Rate limiting tiers for upload admission
	IPLimit        int
	IPWindow       time.Duration
	FPLimit        int
	FPWindow       time.Duration
	GlobalLimit    int
	GlobalWindow   time.Duration
	DedupWindow    time.Duration
	SignedURLGrant time.Duration

	// Upload constraints
	MaxFileBytes        int64
	AllowedContentTypes []string

	// Turnstile verification
	TurnstileSecretKey   string
	TurnstileBypassToken string
	TurnstileVerifyURL   string

	// Vision model pass-through
	VisionAPIURL  string
	VisionAPIKey  string
	VisionModel   string
	VisionTimeout time.Duration

	// Analysis concurrency limiter
	MaxConcurrentAnalyses int
	AnalysisMaxWait       time.Duration

	// Leads database
	LeadsDBPath string

	// Production settings
	ProductionMode  bool
	EnableRequestID bool
	EnableCORS      bool

	// Monitoring settings
	EnableHealthCheck   bool
	EnableStatsEndpoint bool
	EnableSwagger       bool

	// Storage configuration
	Storage *StorageConfiguration
}

// Load loads configuration from environment variables and .env file
func Load() *Config {
	// Try to load .env file (optional)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env file")
	}

	return &Config{
		// Server configuration
		Port:         getEnv("PORT", "8080"),
		AppEnv:       getEnv("APP_ENV", "development"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:  getDuration("IDLE_TIMEOUT", 90*time.Second),
		BodyLimit:    getInt("BODY_LIMIT", 25*1024*1024), // 25MB

		// Rate limiting tiers
		IPLimit:        getInt("RATE_LIMIT_IP", 10),
		IPWindow:       getDuration("RATE_LIMIT_IP_WINDOW", 60*time.Second),
		FPLimit:        getInt("RATE_LIMIT_FINGERPRINT", 30),
		FPWindow:       getDuration("RATE_LIMIT_FINGERPRINT_WINDOW", 60*time.Minute),
		GlobalLimit:    getInt("RATE_LIMIT_GLOBAL", 1000),
		GlobalWindow:   getDuration("RATE_LIMIT_GLOBAL_WINDOW", 60*time.Minute),
		DedupWindow:    getDuration("DEDUP_WINDOW", 5*time.Minute),
		SignedURLGrant: getDuration("SIGNED_URL_TTL", 60*time.Second),

		// Upload constraints
		MaxFileBytes:        getInt64("MAX_FILE_BYTES", 5*1024*1024), // 5MB
		AllowedContentTypes: getStringSlice("ALLOWED_CONTENT_TYPES", []string{"image/jpeg", "image/png"}),

		// Turnstile verification
		TurnstileSecretKey:   getEnv("TURNSTILE_SECRET_KEY", ""),
		TurnstileBypassToken: getEnv("TURNSTILE_BYPASS_TOKEN", ""),
		TurnstileVerifyURL:   getEnv("TURNSTILE_VERIFY_URL", ""),

		// Vision model pass-through
		VisionAPIURL:  getEnv("VISION_API_URL", "https://ark.cn-beijing.volces.com/api/v3/chat/completions"),
		VisionAPIKey:  getEnv("VISION_API_KEY", ""),
		VisionModel:   getEnv("VISION_MODEL", "doubao-seed-1-6-flash-250828"),
		VisionTimeout: getDuration("VISION_TIMEOUT", 60*time.Second),

		// Analysis concurrency limiter
		MaxConcurrentAnalyses: getInt("MAX_CONCURRENT_ANALYSES", 8),
		AnalysisMaxWait:       getDuration("ANALYSIS_MAX_WAIT", 15*time.Second),

		// Leads database
		LeadsDBPath: getEnv("LEADS_DB_PATH", "leads.db"),

		// Production settings
		ProductionMode:  getBool("PRODUCTION_MODE", false),
		EnableRequestID: getBool("ENABLE_REQUEST_ID", true),
		EnableCORS:      getBool("ENABLE_CORS", true),

		// Monitoring settings
		EnableHealthCheck:   getBool("ENABLE_HEALTH_CHECK", true),
		EnableStatsEndpoint: getBool("ENABLE_STATS_ENDPOINT", true),
		EnableSwagger:       getBool("ENABLE_SWAGGER", false),

		// Storage configuration
		Storage: LoadStorageConfig(),
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Warning: Invalid int64 value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

func getStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, len(parts))
		for i, part := range parts {
			result[i] = strings.TrimSpace(part)
		}
		return result
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.ProductionMode
}

// VisionEnabled reports whether the vision pass-through is configured.
func (c *Config) VisionEnabled() bool {
	return c.VisionAPIKey != ""
}

// PrintConfig logs the current configuration (without sensitive data)
func (c *Config) PrintConfig() {
	log.Println("===========================================")
	log.Println("Upload Admission Service Configuration")
	log.Println("===========================================")
	log.Printf("Environment:        %s", c.AppEnv)
	log.Printf("Port:               %s", c.Port)
	log.Printf("IP limit:           %d per %s", c.IPLimit, c.IPWindow)
	log.Printf("Fingerprint limit:  %d per %s", c.FPLimit, c.FPWindow)
	log.Printf("Global limit:       %d per %s", c.GlobalLimit, c.GlobalWindow)
	log.Printf("Dedup window:       %s", c.DedupWindow)
	log.Printf("Signed URL TTL:     %s", c.SignedURLGrant)
	log.Printf("Max file size:      %dMB", c.MaxFileBytes/1024/1024)
	log.Printf("Turnstile:          configured=%t bypass=%t", c.TurnstileSecretKey != "", c.TurnstileBypassToken != "")
	log.Printf("Vision model:       %s (enabled=%t)", c.VisionModel, c.VisionEnabled())
	log.Printf("Leads DB:           %s", c.LeadsDBPath)
	if c.Storage != nil && c.Storage.Enabled {
		log.Printf("Storage provider:   %s (bucket=%s)", c.Storage.Provider, c.Storage.Bucket)
	} else {
		log.Printf("Storage provider:   disabled")
	}
	log.Println("===========================================")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.IPLimit <= 0 {
		log.Printf("Warning: RATE_LIMIT_IP is 0 or negative, setting to default: 10")
		c.IPLimit = 10
	}

	if c.FPLimit <= 0 {
		log.Printf("Warning: RATE_LIMIT_FINGERPRINT is 0 or negative, setting to default: 30")
		c.FPLimit = 30
	}

	if c.GlobalLimit <= 0 {
		log.Printf("Warning: RATE_LIMIT_GLOBAL is 0 or negative, setting to default: 1000")
		c.GlobalLimit = 1000
	}

	if c.DedupWindow <= 0 {
		log.Printf("Warning: DEDUP_WINDOW is 0 or negative, setting to default: 5m")
		c.DedupWindow = 5 * time.Minute
	}

	if c.SignedURLGrant <= 0 {
		log.Printf("Warning: SIGNED_URL_TTL is 0 or negative, setting to default: 60s")
		c.SignedURLGrant = 60 * time.Second
	}

	return nil
}

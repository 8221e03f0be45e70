package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"face-shape-api/internal/config"
	"face-shape-api/internal/providers"
)

var extensionPattern = regexp.MustCompile(`[^a-z0-9]`)

// ErrImageTooLarge is returned when a decoded payload exceeds the configured
// MaxFileBytes cap.
var ErrImageTooLarge = errors.New("image exceeds the maximum allowed size")

// StorageService issues signed upload grants and performs direct uploads
// against the configured object store.
type StorageService struct {
	provider providers.StorageProvider
	cfg      *config.StorageConfiguration

	mu      sync.Mutex
	ensured bool
}

// NewStorageService creates a storage service for the given provider.
func NewStorageService(provider providers.StorageProvider, cfg *config.StorageConfiguration) *StorageService {
	return &StorageService{
		provider: provider,
		cfg:      cfg,
	}
}

// EnsureBucket provisions the bucket once per process. Failures are logged
// and swallowed; the signed-URL call surfaces the real error if the bucket
// is genuinely unusable.
func (s *StorageService) EnsureBucket(ctx context.Context) {
	s.mu.Lock()
	if s.ensured {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.provider.EnsureBucket(ctx); err != nil {
		log.Printf("Failed to ensure bucket %s: %v", s.cfg.Bucket, err)
		return
	}

	s.mu.Lock()
	s.ensured = true
	s.mu.Unlock()
}

// SignedUploadGrant is one issued upload grant.
type SignedUploadGrant struct {
	UploadURL string
	FileURL   string
	Path      string
	Token     string
	Method    string
	Headers   map[string]string
}

// CreateSignedUpload generates an object key for the sanitized extension and
// returns a signed PUT grant valid for ttl.
func (s *StorageService) CreateSignedUpload(ctx context.Context, extension, contentType string, ttl time.Duration) (*SignedUploadGrant, error) {
	s.EnsureBucket(ctx)

	ext := SanitizeExtension(extension, fallbackExtension(contentType))
	key := s.buildObjectKey(ext)

	signed, err := s.provider.PresignPut(ctx, key, contentType, ttl)
	if err != nil {
		return nil, err
	}

	return &SignedUploadGrant{
		UploadURL: signed.URL,
		FileURL:   s.provider.PublicURL(key),
		Path:      key,
		Token:     signed.Token,
		Method:    signed.Method,
		Headers:   signed.Headers,
	}, nil
}

// UploadDataURI decodes a base64 data URI, writes it to a fresh object key,
// and returns the public URL. Inputs that are already URLs pass through.
func (s *StorageService) UploadDataURI(ctx context.Context, image string) (string, error) {
	if !strings.HasPrefix(image, "data:") {
		return image, nil
	}

	mime, data, err := parseDataURI(image)
	if err != nil {
		return "", err
	}
	if s.cfg.MaxFileBytes > 0 && int64(len(data)) > s.cfg.MaxFileBytes {
		return "", ErrImageTooLarge
	}

	s.EnsureBucket(ctx)

	ext := SanitizeExtension(fallbackExtension(mime), "jpg")
	key := fmt.Sprintf("%s%d-%s.%s", s.keyPrefix(), time.Now().UnixMilli(), uuid.NewString(), ext)

	result, err := s.provider.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mime)
	if err != nil {
		return "", err
	}

	return result.PublicURL, nil
}

// HealthCheck verifies the backing provider is reachable.
func (s *StorageService) HealthCheck(ctx context.Context) error {
	return s.provider.HealthCheck(ctx)
}

func (s *StorageService) buildObjectKey(ext string) string {
	random := make([]byte, 8)
	if _, err := rand.Read(random); err != nil {
		// crypto/rand never fails on supported platforms; fall back anyway
		copy(random, uuid.NewString())
	}
	return fmt.Sprintf("%s%d-%s.%s", s.keyPrefix(), time.Now().UnixMilli(), hex.EncodeToString(random), ext)
}

func (s *StorageService) keyPrefix() string {
	prefix := s.cfg.KeyPrefix
	if prefix == "" {
		return ""
	}
	return strings.TrimSuffix(prefix, "/") + "/"
}

// SanitizeExtension strips everything but lowercase alphanumerics from ext,
// falling back when nothing survives.
func SanitizeExtension(ext, fallback string) string {
	clean := extensionPattern.ReplaceAllString(strings.ToLower(ext), "")
	if clean == "" {
		return fallback
	}
	return clean
}

func fallbackExtension(contentType string) string {
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		return sub
	}
	return "jpg"
}

func parseDataURI(uri string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, providers.ErrInvalidDataURI
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, providers.ErrInvalidDataURI
	}

	mime, enc, ok := strings.Cut(header, ";")
	if !ok || enc != "base64" || mime == "" {
		return "", nil, providers.ErrInvalidDataURI
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", providers.ErrInvalidDataURI, err)
	}

	return mime, data, nil
}

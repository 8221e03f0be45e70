package services

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"face-shape-api/internal/config"
	"face-shape-api/internal/providers"
)

// fakeProvider is an in-memory StorageProvider for tests.
type fakeProvider struct {
	mu          sync.Mutex
	ensureCalls int
	ensureErr   error
	presignErr  error
	uploadErr   error
	healthErr   error

	presignedKeys []string
	uploadedKeys  []string
	uploadedMime  []string
	uploadedData  [][]byte
}

func (f *fakeProvider) EnsureBucket(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*providers.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.uploadedKeys = append(f.uploadedKeys, key)
	f.uploadedMime = append(f.uploadedMime, contentType)
	f.uploadedData = append(f.uploadedData, data)
	f.mu.Unlock()
	return &providers.UploadResult{
		Key:       key,
		PublicURL: f.PublicURL(key),
		Size:      size,
		ETag:      "etag",
		Provider:  "fake",
	}, nil
}

func (f *fakeProvider) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (*providers.SignedUpload, error) {
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	f.mu.Lock()
	f.presignedKeys = append(f.presignedKeys, key)
	f.mu.Unlock()
	return &providers.SignedUpload{
		URL:    "https://signed.example/" + key,
		Token:  "upload-token",
		Method: "PUT",
		Headers: map[string]string{
			"Content-Type": contentType,
		},
		ExpiresAt: time.Now().Add(expires),
	}, nil
}

func (f *fakeProvider) PublicURL(key string) string {
	return "https://cdn.example/" + key
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error {
	return f.healthErr
}

func newTestStorage(provider providers.StorageProvider) *StorageService {
	return NewStorageService(provider, &config.StorageConfiguration{
		Enabled:   true,
		Provider:  providers.ProviderMinIO,
		Bucket:    "uploads-test",
		KeyPrefix: "uploads/",
	})
}

func TestSanitizeExtension(t *testing.T) {
	cases := []struct {
		in, fallback, want string
	}{
		{"jpg", "jpg", "jpg"},
		{"PNG", "jpg", "png"},
		{"../../etc", "jpg", "etc"},
		{"we!bp", "jpg", "webp"},
		{"", "jpg", "jpg"},
		{"<>!?", "jpg", "jpg"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeExtension(tc.in, tc.fallback), "input %q", tc.in)
	}
}

func TestCreateSignedUploadKeyFormat(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestStorage(provider)

	grant, err := s.CreateSignedUpload(context.Background(), "png", "image/png", time.Minute)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^uploads/\d+-[0-9a-f]{16}\.png$`), grant.Path)
	assert.Equal(t, "https://signed.example/"+grant.Path, grant.UploadURL)
	assert.Equal(t, "https://cdn.example/"+grant.Path, grant.FileURL)
	assert.Equal(t, "upload-token", grant.Token)
	assert.Equal(t, "PUT", grant.Method)
	assert.Equal(t, "image/png", grant.Headers["Content-Type"])
}

func TestCreateSignedUploadExtensionFallsBackToContentType(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestStorage(provider)

	grant, err := s.CreateSignedUpload(context.Background(), "", "image/jpeg", time.Minute)
	require.NoError(t, err)
	assert.Regexp(t, `\.jpeg$`, grant.Path)
}

func TestCreateSignedUploadPropagatesPresignError(t *testing.T) {
	presignErr := errors.New("presign denied")
	provider := &fakeProvider{presignErr: presignErr}
	s := newTestStorage(provider)

	_, err := s.CreateSignedUpload(context.Background(), "jpg", "image/jpeg", time.Minute)
	assert.ErrorIs(t, err, presignErr)
}

func TestEnsureBucketRunsOncePerProcess(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestStorage(provider)

	_, err := s.CreateSignedUpload(context.Background(), "jpg", "image/jpeg", time.Minute)
	require.NoError(t, err)
	_, err = s.CreateSignedUpload(context.Background(), "jpg", "image/jpeg", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.ensureCalls)
}

func TestEnsureBucketFailureIsNotFatal(t *testing.T) {
	provider := &fakeProvider{ensureErr: providers.ErrBucketNotFound}
	s := newTestStorage(provider)

	_, err := s.CreateSignedUpload(context.Background(), "jpg", "image/jpeg", time.Minute)
	require.NoError(t, err)

	// Failed ensures are retried on the next call instead of being cached.
	_, err = s.CreateSignedUpload(context.Background(), "jpg", "image/jpeg", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.ensureCalls)
}

func TestUploadDataURIPassesThroughURLs(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestStorage(provider)

	url, err := s.UploadDataURI(context.Background(), "https://example.com/face.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/face.jpg", url)
	assert.Empty(t, provider.uploadedKeys)
}

func TestUploadDataURIDecodesAndUploads(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestStorage(provider)

	payload := []byte("fake image bytes")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	url, err := s.UploadDataURI(context.Background(), uri)
	require.NoError(t, err)

	require.Len(t, provider.uploadedKeys, 1)
	assert.Regexp(t, `^uploads/\d+-[0-9a-f-]+\.png$`, provider.uploadedKeys[0])
	assert.Equal(t, "image/png", provider.uploadedMime[0])
	assert.Equal(t, payload, provider.uploadedData[0])
	assert.Equal(t, "https://cdn.example/"+provider.uploadedKeys[0], url)
}

func TestUploadDataURIRejectsOversizedPayload(t *testing.T) {
	provider := &fakeProvider{}
	s := NewStorageService(provider, &config.StorageConfiguration{
		Enabled:      true,
		Provider:     providers.ProviderMinIO,
		Bucket:       "uploads-test",
		KeyPrefix:    "uploads/",
		MaxFileBytes: 8,
	})

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("nine bytes"))

	_, err := s.UploadDataURI(context.Background(), uri)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Empty(t, provider.uploadedKeys)
}

func TestUploadDataURIRejectsMalformedInput(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestStorage(provider)

	for _, uri := range []string{
		"data:image/png;base64",
		"data:;base64,AAAA",
		"data:image/png,AAAA",
		"data:image/png;base64,%%%not-base64%%%",
	} {
		_, err := s.UploadDataURI(context.Background(), uri)
		assert.ErrorIs(t, err, providers.ErrInvalidDataURI, "uri %q", uri)
	}
}

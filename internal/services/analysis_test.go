package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"face-shape-api/internal/config"
	"face-shape-api/internal/pool"
)

func visionStub(t *testing.T, status int, content any, gotPayload *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotPayload != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(gotPayload))
		}
		w.WriteHeader(status)
		if status < 200 || status >= 300 {
			_, _ = w.Write([]byte(`quota exceeded`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func newAnalysis(visionURL, apiKey string, limiter *pool.Limiter) *AnalysisService {
	if limiter == nil {
		limiter = pool.NewLimiter(4, time.Second)
	}
	cfg := &config.Config{
		VisionAPIURL:  visionURL,
		VisionAPIKey:  apiKey,
		VisionModel:   "vision-test-model",
		VisionTimeout: 5 * time.Second,
	}
	return NewAnalysisService(cfg, newTestStorage(&fakeProvider{}), limiter)
}

func TestAnalyzeMissingImage(t *testing.T) {
	svc := newAnalysis("http://unused.invalid", "key", nil)

	_, err := svc.Analyze(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingImage)
}

func TestAnalyzeMissingAPIKey(t *testing.T) {
	svc := newAnalysis("http://unused.invalid", "", nil)

	_, err := svc.Analyze(context.Background(), "https://example.com/face.jpg")
	assert.ErrorIs(t, err, ErrVisionNotConfig)
}

func TestAnalyzeURLPassThrough(t *testing.T) {
	raw := `Summary table here {"summary":{"overallScore":8.5}} trailing notes`
	var payload map[string]any
	srv := visionStub(t, http.StatusOK, raw, &payload)
	defer srv.Close()

	svc := newAnalysis(srv.URL, "key", nil)

	resp, err := svc.Analyze(context.Background(), "https://example.com/face.jpg")
	require.NoError(t, err)

	assert.Equal(t, raw, resp.Raw)
	assert.Equal(t, "https://example.com/face.jpg", resp.ImageURL)
	require.NotNil(t, resp.Parsed)
	summary := resp.Parsed["summary"].(map[string]any)
	assert.Equal(t, 8.5, summary["overallScore"])

	// The upstream payload must reference the image URL, not inline bytes.
	assert.Equal(t, "vision-test-model", payload["model"])
	messages := payload["messages"].([]any)
	require.Len(t, messages, 2)
	userContent := messages[1].(map[string]any)["content"].([]any)
	imagePart := userContent[0].(map[string]any)
	assert.Equal(t, "image_url", imagePart["type"])
	assert.Equal(t, "https://example.com/face.jpg", imagePart["image_url"].(map[string]any)["url"])
}

func TestAnalyzeUploadsDataURIFirst(t *testing.T) {
	srv := visionStub(t, http.StatusOK, "report without json", nil)
	defer srv.Close()

	provider := &fakeProvider{}
	cfg := &config.Config{
		VisionAPIURL:  srv.URL,
		VisionAPIKey:  "key",
		VisionModel:   "vision-test-model",
		VisionTimeout: 5 * time.Second,
	}
	svc := NewAnalysisService(cfg, newTestStorage(provider), pool.NewLimiter(2, time.Second))

	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))
	resp, err := svc.Analyze(context.Background(), uri)
	require.NoError(t, err)

	require.Len(t, provider.uploadedKeys, 1)
	assert.Equal(t, "https://cdn.example/"+provider.uploadedKeys[0], resp.ImageURL)
	assert.Nil(t, resp.Parsed)
	assert.Equal(t, "report without json", resp.Raw)
}

func TestAnalyzeContentPartsAreJoined(t *testing.T) {
	content := []map[string]any{
		{"type": "text", "text": "part one"},
		{"type": "text", "text": `{"summary":{"overallScore":7}}`},
	}
	srv := visionStub(t, http.StatusOK, content, nil)
	defer srv.Close()

	svc := newAnalysis(srv.URL, "key", nil)

	resp, err := svc.Analyze(context.Background(), "https://example.com/face.jpg")
	require.NoError(t, err)
	assert.Equal(t, "part one\n{\"summary\":{\"overallScore\":7}}", resp.Raw)
	require.NotNil(t, resp.Parsed)
}

func TestAnalyzeRemoteErrorPreservesStatus(t *testing.T) {
	srv := visionStub(t, http.StatusTooManyRequests, nil, nil)
	defer srv.Close()

	svc := newAnalysis(srv.URL, "key", nil)

	_, err := svc.Analyze(context.Background(), "https://example.com/face.jpg")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusTooManyRequests, remote.Status)
	assert.Equal(t, "quota exceeded", remote.Details)
}

func TestAnalyzeUploadFailure(t *testing.T) {
	provider := &fakeProvider{uploadErr: assert.AnError}
	cfg := &config.Config{
		VisionAPIURL:  "http://unused.invalid",
		VisionAPIKey:  "key",
		VisionTimeout: time.Second,
	}
	svc := NewAnalysisService(cfg, newTestStorage(provider), pool.NewLimiter(2, time.Second))

	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("x"))
	_, err := svc.Analyze(context.Background(), uri)
	assert.ErrorIs(t, err, ErrImageUpload)
}

func TestAnalyzeBusyLimiter(t *testing.T) {
	limiter := pool.NewLimiter(1, 20*time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	svc := newAnalysis("http://unused.invalid", "key", limiter)

	_, err := svc.Analyze(context.Background(), "https://example.com/face.jpg")
	assert.ErrorIs(t, err, pool.ErrBusy)
}

func TestExtractJSONFromText(t *testing.T) {
	assert.Nil(t, extractJSONFromText("no braces at all"))
	assert.Nil(t, extractJSONFromText("{broken json"))
	assert.Nil(t, extractJSONFromText("} reversed {"))

	parsed := extractJSONFromText(`leading {"a": {"b": 1}} trailing`)
	require.NotNil(t, parsed)
	assert.Contains(t, parsed, "a")
}

package verify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteverifyStub(t *testing.T, status int, body string, gotForm *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if gotForm != nil {
			*gotForm = map[string]string{
				"secret":   r.PostFormValue("secret"),
				"response": r.PostFormValue("response"),
				"remoteip": r.PostFormValue("remoteip"),
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestTurnstileSuccess(t *testing.T) {
	var form map[string]string
	srv := siteverifyStub(t, http.StatusOK, `{"success":true}`, &form)
	defer srv.Close()

	v := NewTurnstile("secret-key", srv.URL)
	ok, err := v.Verify(context.Background(), "token-123", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret-key", form["secret"])
	assert.Equal(t, "token-123", form["response"])
	assert.Equal(t, "1.2.3.4", form["remoteip"])
}

func TestTurnstileFailureIsNotError(t *testing.T) {
	srv := siteverifyStub(t, http.StatusOK, `{"success":false}`, nil)
	defer srv.Close()

	v := NewTurnstile("secret-key", srv.URL)
	ok, err := v.Verify(context.Background(), "bad-token", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTurnstileNon2xxFailsClosed(t *testing.T) {
	srv := siteverifyStub(t, http.StatusBadGateway, "upstream down", nil)
	defer srv.Close()

	v := NewTurnstile("secret-key", srv.URL)
	ok, err := v.Verify(context.Background(), "token", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTurnstileUndecodableBodyFailsClosed(t *testing.T) {
	srv := siteverifyStub(t, http.StatusOK, "not json", nil)
	defer srv.Close()

	v := NewTurnstile("secret-key", srv.URL)
	ok, err := v.Verify(context.Background(), "token", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTurnstileMissingSecret(t *testing.T) {
	v := NewTurnstile("", "")
	ok, err := v.Verify(context.Background(), "token", "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBypassShortCircuits(t *testing.T) {
	// A stub that would fail every verification; the bypass must not call it.
	srv := siteverifyStub(t, http.StatusOK, `{"success":false}`, nil)
	defer srv.Close()

	b := NewBypass("let-me-in", NewTurnstile("secret", srv.URL))
	ok, err := b.Verify(context.Background(), "let-me-in", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBypassDelegatesOtherTokens(t *testing.T) {
	srv := siteverifyStub(t, http.StatusOK, `{"success":true}`, nil)
	defer srv.Close()

	b := NewBypass("let-me-in", NewTurnstile("secret", srv.URL))
	ok, err := b.Verify(context.Background(), "real-token", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBypassWithoutNextFailsClosed(t *testing.T) {
	b := NewBypass("let-me-in", nil)
	ok, err := b.Verify(context.Background(), "other-token", "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFromConfig(t *testing.T) {
	_, err := FromConfig("", "", "")
	assert.True(t, errors.Is(err, ErrNotConfigured))

	v, err := FromConfig("secret", "", "")
	require.NoError(t, err)
	_, isTurnstile := v.(*Turnstile)
	assert.True(t, isTurnstile)

	v, err = FromConfig("secret", "bypass", "")
	require.NoError(t, err)
	_, isBypass := v.(*Bypass)
	assert.True(t, isBypass)

	v, err = FromConfig("", "bypass", "")
	require.NoError(t, err)
	ok, err := v.Verify(context.Background(), "bypass", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

package fingerprint_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitgearzzz/storefront-auth/pkg/fingerprint"
)

func newRequest(t *testing.T, userAgent string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", userAgent)
	return r
}

func TestFromHTTPRequest(t *testing.T) {
	fp1, err := fingerprint.FromHTTPRequest(newRequest(t, "browser-a"))
	require.NoError(t, err)
	fp2, err := fingerprint.FromHTTPRequest(newRequest(t, "browser-a"))
	require.NoError(t, err)
	fp3, err := fingerprint.FromHTTPRequest(newRequest(t, "browser-b"))
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "same client profile should produce the same fingerprint")
	assert.NotEqual(t, fp1, fp3, "different user agents should produce different fingerprints")
}

func TestFromHTTPRequestNil(t *testing.T) {
	_, err := fingerprint.FromHTTPRequest(nil)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var got string
	handler := fingerprint.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp, err := fingerprint.FromContext(r.Context())
		require.NoError(t, err)
		got = fp
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(t, "browser-a"))

	want, err := fingerprint.FromHTTPRequest(newRequest(t, "browser-a"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFromContextMissing(t *testing.T) {
	_, err := fingerprint.FromContext(t.Context())
	assert.Error(t, err)
}

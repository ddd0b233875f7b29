package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	"github.com/fitgearzzz/storefront-auth/internal/config"
	"github.com/fitgearzzz/storefront-auth/internal/session"
	"github.com/fitgearzzz/storefront-auth/internal/shopify"
)

const (
	testCSRFSecret  = "12345678901234567890123456789012" // NOSONAR
	testClientID    = "my-client-id"
	testRedirectURI = "https://shop.example.com/auth/callback"
	testFingerprint = "fingerprint"
)

// startTokenServer serves the token endpoint, counting exchange calls and
// recording the last submitted form.
func startTokenServer(t *testing.T, fail bool, exchanges *atomic.Int64, lastForm *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		require.NoError(t, r.ParseForm())
		if lastForm != nil {
			*lastForm = r.PostForm
		}

		if fail {
			http.Error(w, `{"error": "invalid_grant"}`, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(shopify.TokenResponse{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			IDToken:      "id-token",
			TokenType:    "Bearer",
			ExpiresIn:    3600,
		})
	}))
}

func testAuthConfig() *config.Auth {
	return &config.Auth{
		SessionDuration: time.Hour,
		AttemptDuration: 10 * time.Minute,
		CSRFSecret:      commoncfg.SourceRef{Source: "embedded", Value: testCSRFSecret},
		SessionCookieTemplate: config.CookieTemplate{
			Name: "__Host-Http-session", Path: "/", Secure: true, HTTPOnly: true, SameSite: config.CookieSameSiteLax,
		},
		CSRFCookieTemplate: config.CookieTemplate{
			Name: "csrf-token", Path: "/", Secure: true, SameSite: config.CookieSameSiteStrict,
		},
		AttemptCookieTemplate: config.CookieTemplate{
			Name: "__Host-Http-login-attempt", Path: "/", Secure: true, HTTPOnly: true, SameSite: config.CookieSameSiteLax,
		},
	}
}

func newTestManager(t *testing.T, cfg *config.Auth, sessions session.Repository, tokenURL string) *session.Manager {
	t.Helper()

	endpoints := shopify.Endpoints{
		Authorize: "https://account.example.com/authentication/oauth/authorize",
		Token:     tokenURL,
		Logout:    "https://account.example.com/authentication/logout",
	}
	client := shopify.NewClient(endpoints, testClientID, testRedirectURI,
		"openid email customer-account-api:full", http.DefaultClient, nil)

	manager, err := session.NewManager(cfg, client, sessions)
	require.NoError(t, err)

	return manager
}

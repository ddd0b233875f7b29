package server

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
	sessionmock "github.com/fitgearzzz/storefront-auth/internal/session/mock"
	"github.com/fitgearzzz/storefront-auth/internal/shopify"
)

const (
	testUserAgent   = "test-agent"
	testClientID    = "my-client-id"
	testRedirectURI = "https://shop.example.com/auth/callback"
	testCSRFSecret  = "12345678901234567890123456789012" // NOSONAR

	sessionCookieName = "__Host-Http-session"
	csrfCookieName    = "csrf-token"
	attemptCookieName = "__Host-Http-login-attempt"
)

// testEnv runs the whole HTTP surface against an in-memory repository and
// stub provider endpoints.
type testEnv struct {
	ts       *httptest.Server
	client   *http.Client
	sessions *sessionmock.Repository
	manager  *session.Manager

	exchanges    atomic.Int64
	profileCalls atomic.Int64
	failExchange atomic.Bool
	failProfile  atomic.Bool
}

func newTestEnv(t *testing.T, opts ...sessionmock.RepositoryOption) *testEnv {
	t.Helper()

	env := &testEnv{sessions: sessionmock.NewInMemRepository(opts...)}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.exchanges.Add(1)

		if env.failExchange.Load() {
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
	t.Cleanup(tokenSrv.Close)

	customerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.profileCalls.Add(1)

		if env.failProfile.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}

		require.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"customer": {
					"id": "gid://shopify/Customer/1",
					"displayName": "Ada Lovelace",
					"firstName": "Ada",
					"lastName": "Lovelace",
					"emailAddress": {"emailAddress": "ada@example.com"}
				}
			}
		}`))
	}))
	t.Cleanup(customerSrv.Close)

	endpoints := shopify.Endpoints{
		Authorize:   "https://account.example.com/authentication/oauth/authorize",
		Token:       tokenSrv.URL,
		Logout:      "https://account.example.com/authentication/logout",
		CustomerAPI: customerSrv.URL,
	}
	shopifyClient := shopify.NewClient(endpoints, testClientID, testRedirectURI,
		"openid email customer-account-api:full", http.DefaultClient, nil)

	cfg := testServerConfig()

	manager, err := session.NewManager(&cfg.Auth, shopifyClient, env.sessions)
	require.NoError(t, err)
	env.manager = manager

	require.NoError(t, initMeters(t.Context(), cfg))

	srv := createHTTPServer(t.Context(), cfg, manager, shopifyClient)
	env.ts = httptest.NewServer(srv.Handler)
	t.Cleanup(env.ts.Close)

	env.client = &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return env
}

func testServerConfig() *config.Config {
	return &config.Config{
		BaseConfig: commoncfg.BaseConfig{
			Application: commoncfg.Application{Name: "storefront-auth-test"},
		},
		HTTP: config.HTTPServer{
			Address:         "localhost:0",
			ShutdownTimeout: time.Second,
		},
		Shopify: config.Shopify{
			AccountDomain: "https://account.example.com",
			APIVersion:    "2024-10",
			ClientID:      commoncfg.SourceRef{Source: "embedded", Value: testClientID},
			RedirectURI:   testRedirectURI,
		},
		Auth: config.Auth{
			SessionDuration: time.Hour,
			AttemptDuration: 10 * time.Minute,
			HomeURI:         "/",
			ProfileCacheTTL: 5 * time.Minute,
			CSRFSecret:      commoncfg.SourceRef{Source: "embedded", Value: testCSRFSecret},
			SessionCookieTemplate: config.CookieTemplate{
				Name: sessionCookieName, Path: "/", Secure: true, HTTPOnly: true, SameSite: config.CookieSameSiteLax,
			},
			CSRFCookieTemplate: config.CookieTemplate{
				Name: csrfCookieName, Path: "/", Secure: true, SameSite: config.CookieSameSiteStrict,
			},
			AttemptCookieTemplate: config.CookieTemplate{
				Name: attemptCookieName, Path: "/", Secure: true, HTTPOnly: true, SameSite: config.CookieSameSiteLax,
			},
		},
	}
}

// do sends the request with the browser profile the fingerprint is derived
// from, unless the test already pinned its own.
func (env *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", testUserAgent)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-GB")
	}

	resp, err := env.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// login starts a login attempt and returns the attempt cookie and the parsed
// authorization redirect.
func (env *testEnv) login(t *testing.T, returnTo string) (*http.Cookie, *url.URL) {
	t.Helper()

	target := env.ts.URL + "/auth/login"
	if returnTo != "" {
		target += "?return_to=" + url.QueryEscape(returnTo)
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)

	resp := env.do(t, req)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	attemptCookie := responseCookie(t, resp, attemptCookieName)
	require.NotEmpty(t, attemptCookie.Value)

	return attemptCookie, loc
}

// callback completes the login attempt with the given code and state.
func (env *testEnv) callback(t *testing.T, attemptCookie *http.Cookie, code, state string) *http.Response {
	t.Helper()

	q := url.Values{}
	q.Set("code", code)
	q.Set("state", state)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/auth/callback?"+q.Encode(), nil)
	require.NoError(t, err)
	if attemptCookie != nil {
		req.AddCookie(attemptCookie)
	}

	return env.do(t, req)
}

// completeLogin runs the whole flow and returns the established session and
// CSRF cookies.
func (env *testEnv) completeLogin(t *testing.T, returnTo string) (sessionCookie, csrfCookie *http.Cookie) {
	t.Helper()

	attemptCookie, loc := env.login(t, returnTo)

	resp := env.callback(t, attemptCookie, "auth-code", loc.Query().Get("state"))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	return responseCookie(t, resp, sessionCookieName), responseCookie(t, resp, csrfCookieName)
}

func responseCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}

	t.Fatalf("cookie %q not set on the response", name)

	return nil
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var body T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return body
}

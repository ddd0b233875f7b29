package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
)

type Client struct {
	endpoints   Endpoints
	clientID    string
	redirectURI string
	scopes      string

	httpClient *http.Client
	profiles   profileCache
}

func NewClient(endpoints Endpoints, clientID, redirectURI, scopes string, httpClient *http.Client, profiles profileCache) *Client {
	return &Client{
		endpoints:   endpoints,
		clientID:    clientID,
		redirectURI: redirectURI,
		scopes:      scopes,
		httpClient:  httpClient,
		profiles:    profiles,
	}
}

// Configured reports whether the client holds everything an OAuth exchange
// needs.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.redirectURI != ""
}

// TokenResponse is the token bundle returned by the platform's token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// AuthorizeURL builds the authorization request for one login attempt. The
// redirect URI comes verbatim from configuration: it must match the
// provider-side allow-list exactly, so it is never derived from the request.
func (c *Client) AuthorizeURL(state, codeChallenge, codeChallengeMethod string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.redirectURI)
	q.Set("scope", c.scopes)
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", codeChallengeMethod)

	return c.endpoints.Authorize + "?" + q.Encode()
}

// LogoutURL builds the provider logout URL that also terminates the
// provider-side session. The id_token_hint is attached when held.
func (c *Client) LogoutURL(idTokenHint string) string {
	if idTokenHint == "" {
		return c.endpoints.Logout
	}

	q := url.Values{}
	q.Set("id_token_hint", idTokenHint)

	return c.endpoints.Logout + "?" + q.Encode()
}

// ExchangeCode trades a single-use authorization code plus its PKCE verifier
// for tokens. Credentials stay on this server; the browser is never part of
// this call.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", c.clientID)
	data.Set("redirect_uri", c.redirectURI)
	data.Set("code", code)
	data.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Token, strings.NewReader(data.Encode()))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%w: %w", serviceerr.ErrTokenExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slogctx.Warn(ctx, "Token endpoint rejected the exchange", "status", resp.StatusCode, "detail", string(detail))

		return TokenResponse{}, fmt.Errorf("%w: status %d: %s", serviceerr.ErrTokenExchangeFailed, resp.StatusCode, detail)
	}

	var tokens TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return TokenResponse{}, fmt.Errorf("%w: decoding response: %w", serviceerr.ErrTokenExchangeFailed, err)
	}

	return tokens, nil
}

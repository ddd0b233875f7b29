// Package session implements the server side of the storefront login flow:
// pending login attempts, authenticated sessions and the cookies that bind a
// browser to them.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	slogctx "github.com/veqryn/slog-context"

	"github.com/fitgearzzz/storefront-auth/internal/config"
	"github.com/fitgearzzz/storefront-auth/internal/pkce"
	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
	"github.com/fitgearzzz/storefront-auth/internal/shopify"
	"github.com/fitgearzzz/storefront-auth/pkg/csrf"
)

type Manager struct {
	shopify  *shopify.Client
	sessions Repository
	pkce     pkce.Source

	sessionDuration time.Duration
	attemptDuration time.Duration

	sessionCookieTemplate config.CookieTemplate
	csrfCookieTemplate    config.CookieTemplate
	attemptCookieTemplate config.CookieTemplate

	csrfSecret []byte
}

func NewManager(cfg *config.Auth, shopifyClient *shopify.Client, sessions Repository) (*Manager, error) {
	csrfSecret, err := commoncfg.LoadValueFromSourceRef(cfg.CSRFSecret)
	if err != nil {
		return nil, fmt.Errorf("loading csrf secret from source ref: %w", err)
	}
	if len(csrfSecret) < 32 {
		return nil, errors.New("CSRF secret must be at least 32 bytes")
	}

	return &Manager{
		shopify:               shopifyClient,
		sessions:              sessions,
		sessionDuration:       cfg.SessionDuration,
		attemptDuration:       cfg.AttemptDuration,
		sessionCookieTemplate: cfg.SessionCookieTemplate,
		csrfCookieTemplate:    cfg.CSRFCookieTemplate,
		attemptCookieTemplate: cfg.AttemptCookieTemplate,
		csrfSecret:            csrfSecret,
	}, nil
}

// LoginRedirect is the result of starting a login attempt: where to send the
// browser, and the attempt ID it has to carry back to the callback.
type LoginRedirect struct {
	AuthorizeURL string
	AttemptID    string
}

// SessionData is what the callback handler needs to establish the browser
// session after a successful login.
type SessionData struct {
	SessionID  string
	CSRFToken  string
	RequestURI string
}

// BeginLogin creates a pending login attempt and returns the authorization
// redirect. The PKCE verifier and the expected state value stay server-side;
// only the attempt ID travels to the browser.
func (m *Manager) BeginLogin(ctx context.Context, fingerprint, requestURI string) (LoginRedirect, error) {
	attemptID := m.pkce.AttemptID()
	stateValue := m.pkce.State()
	pk := m.pkce.PKCE()

	state := State{
		ID:           attemptID,
		State:        stateValue,
		PKCEVerifier: pk.Verifier,
		Fingerprint:  fingerprint,
		RequestURI:   requestURI,
		Expiry:       time.Now().Add(m.attemptDuration),
	}

	if err := m.sessions.StoreState(ctx, state); err != nil {
		return LoginRedirect{}, fmt.Errorf("storing login attempt: %w", err)
	}

	slogctx.Debug(ctx, "Started a login attempt")

	return LoginRedirect{
		AuthorizeURL: m.shopify.AuthorizeURL(stateValue, pk.Challenge, pk.Method),
		AttemptID:    attemptID,
	}, nil
}

// FinaliseLogin validates the provider callback against the pending attempt,
// exchanges the code for tokens and establishes a session.
//
// The attempt record is deleted before the token exchange, so a duplicated
// callback produces at most one exchange call: the loser of the race fails
// with a missing-attempt error instead of replaying the code.
func (m *Manager) FinaliseLogin(ctx context.Context, attemptID, state, code, fingerprint string) (SessionData, error) {
	if attemptID == "" {
		return SessionData{}, fmt.Errorf("%w: no pending attempt for this browser", serviceerr.ErrMissingPKCEState)
	}

	attempt, err := m.sessions.LoadState(ctx, attemptID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return SessionData{}, fmt.Errorf("%w: %w", serviceerr.ErrMissingPKCEState, err)
		}

		return SessionData{}, fmt.Errorf("loading login attempt: %w", err)
	}

	if time.Now().After(attempt.Expiry) {
		m.discardAttempt(ctx, attemptID)
		return SessionData{}, fmt.Errorf("%w: attempt %s", serviceerr.ErrStateExpired, attemptID)
	}

	if attempt.Fingerprint != fingerprint {
		return SessionData{}, fmt.Errorf("%w: callback from a different client", serviceerr.ErrFingerprintMismatch)
	}

	if attempt.State != state {
		// the attempt cannot be recovered, drop it so the value can't be probed
		m.discardAttempt(ctx, attemptID)
		return SessionData{}, fmt.Errorf("%w: attempt %s", serviceerr.ErrStateMismatch, attemptID)
	}

	// One exchange per attempt: the record must be gone before the code
	// touches the network.
	if err := m.sessions.DeleteState(ctx, attemptID); err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return SessionData{}, fmt.Errorf("%w: attempt already finalised", serviceerr.ErrMissingPKCEState)
		}

		return SessionData{}, fmt.Errorf("deleting login attempt: %w", err)
	}

	tokens, err := m.shopify.ExchangeCode(ctx, code, attempt.PKCEVerifier)
	if err != nil {
		return SessionData{}, fmt.Errorf("exchanging code for tokens: %w", err)
	}

	slogctx.Info(ctx, "Exchanged the auth code for tokens")

	sessionID := m.pkce.SessionID()
	csrfToken := csrf.NewToken(sessionID, m.csrfSecret)

	session := Session{
		ID:           sessionID,
		CSRFToken:    csrfToken,
		Fingerprint:  fingerprint,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
		Expiry:       time.Now().Add(m.sessionLifetime(tokens.ExpiresIn)),
		LastVisited:  time.Now(),
	}

	if err := m.sessions.StoreSession(ctx, session); err != nil {
		return SessionData{}, fmt.Errorf("storing session: %w", err)
	}

	return SessionData{
		SessionID:  sessionID,
		CSRFToken:  csrfToken,
		RequestURI: attempt.RequestURI,
	}, nil
}

// sessionLifetime caps the session at the access token lifetime when the
// provider reports one. Tokens are never refreshed, so a session that outlives
// its token would only serve anonymous pages anyway.
func (m *Manager) sessionLifetime(expiresIn int64) time.Duration {
	lifetime := m.sessionDuration
	if expiresIn > 0 {
		if tokenLifetime := time.Duration(expiresIn) * time.Second; tokenLifetime < lifetime {
			lifetime = tokenLifetime
		}
	}

	return lifetime
}

func (m *Manager) discardAttempt(ctx context.Context, attemptID string) {
	if err := m.sessions.DeleteState(ctx, attemptID); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		slogctx.Warn(ctx, "Could not delete login attempt", "error", err)
	}
}

// Authenticate resolves the session cookie into a live session and touches its
// last-visited time. Expired sessions are deleted on sight.
func (m *Manager) Authenticate(ctx context.Context, sessionID, fingerprint string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("%w: no session cookie", serviceerr.ErrUnauthorized)
	}

	session, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: %w", serviceerr.ErrUnauthorized, err)
		}

		return Session{}, fmt.Errorf("loading session: %w", err)
	}

	// A session without a recorded expiry never ages out here; the
	// housekeeper's idle sweep is the only thing that can remove it.
	if !session.Expiry.IsZero() && time.Now().After(session.Expiry) {
		if err := m.sessions.DeleteSession(ctx, session); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
			slogctx.Warn(ctx, "Could not delete expired session", "error", err)
		}

		return Session{}, fmt.Errorf("%w: session expired", serviceerr.ErrUnauthorized)
	}

	if session.Fingerprint != fingerprint {
		return Session{}, fmt.Errorf("%w: session used from a different client", serviceerr.ErrFingerprintMismatch)
	}

	session.LastVisited = time.Now()
	if err := m.sessions.StoreSession(ctx, session); err != nil {
		slogctx.Warn(ctx, "Could not update session last-visited time", "error", err)
	}

	return session, nil
}

// Logout deletes the session and returns the provider logout URL to redirect
// the browser to. A logout for an unknown session still succeeds: the cookies
// get cleared either way.
func (m *Manager) Logout(ctx context.Context, sessionID, csrfToken, fingerprint string) (string, error) {
	if !csrf.Validate(csrfToken, sessionID, m.csrfSecret) {
		return "", fmt.Errorf("%w: logout rejected", serviceerr.ErrInvalidCSRFToken)
	}

	session, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return m.shopify.LogoutURL(""), nil
		}

		return "", fmt.Errorf("loading session: %w", err)
	}

	if session.Fingerprint != fingerprint {
		return "", fmt.Errorf("%w: logout from a different client", serviceerr.ErrFingerprintMismatch)
	}

	if err := m.sessions.DeleteSession(ctx, session); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return "", fmt.Errorf("deleting session: %w", err)
	}

	slogctx.Info(ctx, "Deleted session on logout")

	return m.shopify.LogoutURL(session.IDToken), nil
}

func (m *Manager) ValidateCSRFToken(token, sessionID string) bool {
	return csrf.Validate(token, sessionID, m.csrfSecret)
}

func (m *Manager) MakeSessionCookie(ctx context.Context, value string) (*http.Cookie, error) {
	sessionCookie := m.sessionCookieTemplate.ToCookie(value)

	if err := sessionCookie.Valid(); err != nil {
		return nil, fmt.Errorf("invalid session cookie: %w", err)
	}

	if !sessionCookie.Secure {
		slogctx.Warn(ctx, "Session cookie is not marked as Secure; this is not recommended in production environments")
	}
	if !sessionCookie.HttpOnly {
		slogctx.Warn(ctx, "Session cookie is not marked as HttpOnly; this is not recommended in production environments")
	}

	return sessionCookie, nil
}

func (m *Manager) MakeCSRFCookie(ctx context.Context, value string) (*http.Cookie, error) {
	csrfCookie := m.csrfCookieTemplate.ToCookie(value)

	if err := csrfCookie.Valid(); err != nil {
		return nil, fmt.Errorf("invalid CSRF cookie: %w", err)
	}

	if !csrfCookie.Secure {
		slogctx.Warn(ctx, "CSRF cookie is not marked as Secure; this is not recommended in production environments")
	}
	if csrfCookie.HttpOnly {
		slogctx.Warn(ctx, "CSRF cookie is marked as HttpOnly; this is not recommended as the CSRF token needs to be accessible from JavaScript")
	}

	return csrfCookie, nil
}

// MakeAttemptCookie binds the browser to one pending login attempt for the
// duration of the provider round trip.
func (m *Manager) MakeAttemptCookie(ctx context.Context, value string) (*http.Cookie, error) {
	attemptCookie := m.attemptCookieTemplate.ToCookie(value)
	attemptCookie.MaxAge = int(m.attemptDuration.Seconds())

	if err := attemptCookie.Valid(); err != nil {
		return nil, fmt.Errorf("invalid attempt cookie: %w", err)
	}

	if !attemptCookie.HttpOnly {
		slogctx.Warn(ctx, "Attempt cookie is not marked as HttpOnly; this is not recommended in production environments")
	}

	return attemptCookie, nil
}

// ClearSessionCookie returns the session cookie in its expired form.
func (m *Manager) ClearSessionCookie() *http.Cookie {
	return expireCookie(m.sessionCookieTemplate)
}

func (m *Manager) ClearCSRFCookie() *http.Cookie {
	return expireCookie(m.csrfCookieTemplate)
}

func (m *Manager) ClearAttemptCookie() *http.Cookie {
	return expireCookie(m.attemptCookieTemplate)
}

func expireCookie(template config.CookieTemplate) *http.Cookie {
	cookie := template.ToCookie("")
	cookie.MaxAge = -1

	return cookie
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/fitgearzzz/storefront-auth/internal/config"
	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
	"github.com/fitgearzzz/storefront-auth/internal/session"
	"github.com/fitgearzzz/storefront-auth/internal/shopify"
	"github.com/fitgearzzz/storefront-auth/pkg/fingerprint"
)

const csrfTokenHeader = "X-CSRF-Token" //nolint:gosec

// httpHandler serves the storefront-facing auth endpoints.
type httpHandler struct {
	sManager *session.Manager
	shopify  *shopify.Client

	homeURI string

	sessionCookieName,
	csrfCookieName,
	attemptCookieName string
}

func newHTTPHandler(cfg *config.Config, sManager *session.Manager, shopifyClient *shopify.Client) *httpHandler {
	return &httpHandler{
		sManager:          sManager,
		shopify:           shopifyClient,
		homeURI:           cfg.Auth.HomeURI,
		sessionCookieName: cfg.Auth.SessionCookieTemplate.Name,
		csrfCookieName:    cfg.Auth.CSRFCookieTemplate.Name,
		attemptCookieName: cfg.Auth.AttemptCookieTemplate.Name,
	}
}

// login starts a login attempt and redirects the browser to the provider.
func (h *httpHandler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	currentFingerprint, err := fingerprint.FromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract fingerprint", "error", err)
		writeError(w, serviceerr.ErrUnknown)

		return
	}

	returnTo := sanitizeReturnTo(r.URL.Query().Get("return_to"), h.homeURI)

	redirect, err := h.sManager.BeginLogin(ctx, currentFingerprint, returnTo)
	if err != nil {
		slogctx.Error(ctx, "Failed to begin login", "error", err)
		writeError(w, err)

		return
	}

	attemptCookie, err := h.sManager.MakeAttemptCookie(ctx, redirect.AttemptID)
	if err != nil {
		slogctx.Error(ctx, "Failed to create attempt cookie", "error", err)
		writeError(w, serviceerr.ErrUnknown)

		return
	}

	http.SetCookie(w, attemptCookie)
	http.Redirect(w, r, redirect.AuthorizeURL, http.StatusFound)
}

// callback finishes the login attempt. Failures send the browser back to the
// home URI with a failure marker instead of a bare error page: the user is on
// a storefront, not an API client.
func (h *httpHandler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// the attempt cookie never survives a callback, successful or not
	http.SetCookie(w, h.sManager.ClearAttemptCookie())

	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		slogctx.Warn(ctx, "Provider returned an error on the callback",
			"error", errCode, "description", q.Get("error_description"))
		h.redirectLoginFailed(w, r, serviceerr.Code(errCode))

		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		slogctx.Warn(ctx, "Callback is missing code or state")
		h.redirectLoginFailed(w, r, serviceerr.ErrInvalidCallback.Err)

		return
	}

	currentFingerprint, err := fingerprint.FromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract fingerprint", "error", err)
		h.redirectLoginFailed(w, r, serviceerr.ErrUnknown.Err)

		return
	}

	attemptID := cookieValue(r, h.attemptCookieName)

	result, err := h.sManager.FinaliseLogin(ctx, attemptID, state, code, currentFingerprint)
	if err != nil {
		slogctx.Error(ctx, "Failed to finalise login", "error", err)
		h.redirectLoginFailed(w, r, errorCode(err))

		return
	}

	sessionCookie, err := h.sManager.MakeSessionCookie(ctx, result.SessionID)
	if err != nil {
		slogctx.Error(ctx, "Failed to create session cookie", "error", err)
		h.redirectLoginFailed(w, r, serviceerr.ErrUnknown.Err)

		return
	}

	csrfCookie, err := h.sManager.MakeCSRFCookie(ctx, result.CSRFToken)
	if err != nil {
		slogctx.Error(ctx, "Failed to create CSRF cookie", "error", err)
		h.redirectLoginFailed(w, r, serviceerr.ErrUnknown.Err)

		return
	}

	http.SetCookie(w, sessionCookie)
	http.SetCookie(w, csrfCookie)

	slogctx.Debug(ctx, "Redirecting user", "to", result.RequestURI)
	http.Redirect(w, r, result.RequestURI, http.StatusFound)
}

// logout tears down the session and sends the browser to the provider logout.
func (h *httpHandler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	currentFingerprint, err := fingerprint.FromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract fingerprint", "error", err)
		writeError(w, serviceerr.ErrUnknown)

		return
	}

	sessionID := cookieValue(r, h.sessionCookieName)
	if sessionID == "" {
		writeError(w, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "missing session id in the cookies"})

		return
	}

	csrfToken := r.Header.Get(csrfTokenHeader)
	if csrfToken == "" {
		writeError(w, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "missing csrf token header"})

		return
	}

	logoutURL, err := h.sManager.Logout(ctx, sessionID, csrfToken, currentFingerprint)
	if err != nil {
		slogctx.Error(ctx, "Failed to logout user", "error", err)
		writeError(w, err)

		return
	}

	http.SetCookie(w, h.sManager.ClearSessionCookie())
	http.SetCookie(w, h.sManager.ClearCSRFCookie())

	http.Redirect(w, r, logoutURL, http.StatusFound)
}

type meResponse struct {
	Authenticated bool              `json:"authenticated"`
	Customer      *shopify.Customer `json:"customer,omitempty"`
}

// me reports who the session belongs to. An anonymous browser gets a plain
// unauthenticated answer, not an error. A profile fetch failure keeps the
// session but answers without a customer: the storefront renders the visitor
// as anonymous and retries on the next page load.
func (h *httpHandler) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	currentFingerprint, err := fingerprint.FromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract fingerprint", "error", err)
		writeError(w, serviceerr.ErrUnknown)

		return
	}

	sess, err := h.sManager.Authenticate(ctx, cookieValue(r, h.sessionCookieName), currentFingerprint)
	if err != nil {
		if errors.Is(err, serviceerr.ErrUnauthorized) || errors.Is(err, serviceerr.ErrFingerprintMismatch) {
			// the stale cookies are useless, drop them
			http.SetCookie(w, h.sManager.ClearSessionCookie())
			http.SetCookie(w, h.sManager.ClearCSRFCookie())
			writeJSON(w, http.StatusOK, meResponse{Authenticated: false})

			return
		}

		slogctx.Error(ctx, "Failed to authenticate session", "error", err)
		writeError(w, err)

		return
	}

	customer, err := h.shopify.Customer(ctx, sess.AccessToken)
	if err != nil {
		slogctx.Warn(ctx, "Failed to fetch customer profile", "error", err)
		writeJSON(w, http.StatusOK, meResponse{Authenticated: true})

		return
	}

	writeJSON(w, http.StatusOK, meResponse{Authenticated: true, Customer: customer})
}

type proxyCallbackRequest struct {
	Code         string `json:"code"`
	CodeVerifier string `json:"codeVerifier"`
}

// proxyCallback is the stateless exchange primitive: the caller brings its own
// code and verifier and receives the token bundle. Used by storefront themes
// that keep the PKCE round trip client-side.
func (h *httpHandler) proxyCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.shopify.Configured() {
		writeError(w, serviceerr.ErrMisconfigured)

		return
	}

	var req proxyCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "invalid JSON body"})

		return
	}

	if req.Code == "" || req.CodeVerifier == "" {
		writeError(w, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "code and codeVerifier are required"})

		return
	}

	tokens, err := h.shopify.ExchangeCode(ctx, req.Code, req.CodeVerifier)
	if err != nil {
		slogctx.Error(ctx, "Failed to exchange code", "error", err)
		writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

type proxyCustomerRequest struct {
	AccessToken string `json:"accessToken"`
}

type proxyCustomerResponse struct {
	Customer *shopify.Customer `json:"customer"`
}

// proxyCustomer resolves an access token into the customer profile.
func (h *httpHandler) proxyCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.shopify.Configured() {
		writeError(w, serviceerr.ErrMisconfigured)

		return
	}

	var req proxyCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "invalid JSON body"})

		return
	}

	customer, err := h.shopify.Customer(ctx, req.AccessToken)
	if err != nil {
		slogctx.Error(ctx, "Failed to fetch customer profile", "error", err)
		writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, proxyCustomerResponse{Customer: customer})
}

// redirectLoginFailed sends the browser home with a failure marker the
// storefront can render.
func (h *httpHandler) redirectLoginFailed(w http.ResponseWriter, r *http.Request, code serviceerr.Code) {
	u, err := url.Parse(h.homeURI)
	if err != nil {
		u = &url.URL{Path: "/"}
	}

	q := u.Query()
	q.Set("login", "failed")
	q.Set("reason", string(code))
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}

// sanitizeReturnTo only accepts local paths: anything absolute or
// protocol-relative would turn the login endpoint into an open redirect.
func sanitizeReturnTo(returnTo, fallback string) string {
	if returnTo == "" {
		return fallback
	}
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.ContainsAny(returnTo, "\\") {
		return fallback
	}

	return returnTo
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}

	return cookie.Value
}

type errorModel struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func errorCode(err error) serviceerr.Code {
	var serviceErr *serviceerr.Error
	if !errors.As(err, &serviceErr) {
		return serviceerr.ErrUnknown.Err
	}

	return serviceErr.Err
}

func writeError(w http.ResponseWriter, err error) {
	var serviceErr *serviceerr.Error
	if !errors.As(err, &serviceErr) {
		serviceErr = serviceerr.ErrUnknown
	}

	writeJSON(w, serviceErr.HTTPStatus(), errorModel{
		Error:            string(serviceErr.Err),
		ErrorDescription: serviceErr.Description,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

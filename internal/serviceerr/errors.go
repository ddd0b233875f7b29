// Package serviceerr defines the error taxonomy shared by the auth flow,
// the storage repositories and the HTTP layer.
package serviceerr

import "net/http"

// Code is a machine-readable error code, serialised into error responses.
type Code string

// RFC6749-style codes surfaced by the commerce platform's OAuth endpoints.
const (
	CodeInvalidRequest     Code = "invalid_request"
	CodeUnauthorizedClient Code = "unauthorized_client"
	CodeAccessDenied       Code = "access_denied"
	CodeInvalidGrant       Code = "invalid_grant"
	CodeServerError        Code = "server_error"
)

// Codes owned by this service.
const (
	CodeUnknown             Code = "unknown"
	CodeConflict            Code = "conflict"
	CodeNotFound            Code = "not_found"
	CodeInvalidCallback     Code = "invalid_callback"
	CodeMissingPKCEState    Code = "missing_pkce_state"
	CodeStateMismatch       Code = "state_mismatch"
	CodeStateExpired        Code = "state_expired"
	CodeFingerprintMismatch Code = "fingerprint_mismatch"
	CodeTokenExchangeFailed Code = "token_exchange_failed"
	CodeProfileFetchFailed  Code = "profile_fetch_failed"
	CodeInvalidCSRFToken    Code = "invalid_csrf_token"
	CodeMisconfigured       Code = "misconfigured"
)

type Error struct {
	Err         Code
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// HTTPStatus maps the error code onto the status the HTTP layer responds with.
func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeInvalidGrant, CodeInvalidCallback:
		return http.StatusBadRequest
	case CodeUnauthorizedClient:
		return http.StatusUnauthorized
	case CodeAccessDenied, CodeFingerprintMismatch, CodeInvalidCSRFToken:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeStateExpired:
		return http.StatusGone
	case CodeMissingPKCEState, CodeStateMismatch:
		// the pending login attempt cannot be recovered; the user must restart
		return http.StatusConflict
	case CodeTokenExchangeFailed, CodeProfileFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrUnknown      = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrConflict     = &Error{Err: CodeConflict, Description: "already exists"}
	ErrNotFound     = &Error{Err: CodeNotFound, Description: "not found"}
	ErrUnauthorized = &Error{Err: CodeUnauthorizedClient, Description: "unauthorized"}

	// Login attempt failures, in protocol order.
	ErrInvalidCallback     = &Error{Err: CodeInvalidCallback, Description: "missing code or state in the callback"}
	ErrMissingPKCEState    = &Error{Err: CodeMissingPKCEState, Description: "no pending login attempt found"}
	ErrStateMismatch       = &Error{Err: CodeStateMismatch, Description: "state parameter does not match the stored value"}
	ErrStateExpired        = &Error{Err: CodeStateExpired, Description: "login attempt expired"}
	ErrFingerprintMismatch = &Error{Err: CodeFingerprintMismatch, Description: "fingerprint mismatch"}
	ErrTokenExchangeFailed = &Error{Err: CodeTokenExchangeFailed, Description: "token exchange rejected by the identity provider"}

	// Soft failure: the session stays valid, the caller treats the user as anonymous.
	ErrProfileFetchFailed = &Error{Err: CodeProfileFetchFailed, Description: "could not fetch the customer profile"}

	ErrInvalidCSRFToken = &Error{Err: CodeInvalidCSRFToken, Description: "invalid CSRF token"}
	ErrMisconfigured    = &Error{Err: CodeMisconfigured, Description: "server misconfigured"}
)

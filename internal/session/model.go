package session

import "time"

// State is one pending login attempt. It is keyed by the attempt ID carried in
// the browser cookie, not by the OAuth state value: keeping the two separate is
// what lets the callback detect a state mismatch instead of a plain miss.
type State struct {
	ID           string
	State        string
	PKCEVerifier string
	Fingerprint  string
	RequestURI   string
	Expiry       time.Time
}

// Session is an authenticated customer session. The platform tokens never
// leave the server; the browser only ever sees the opaque session ID.
type Session struct {
	ID           string
	CSRFToken    string
	Fingerprint  string
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
	LastVisited  time.Time
}

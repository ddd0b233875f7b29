// Package pkce generates the random artefacts of one login attempt: the
// anti-CSRF state token, the PKCE verifier/challenge pair and session IDs.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

const MethodS256 = "S256"

// verifierLength satisfies RFC 7636: 43 <= length <= 128.
const verifierLength = 64

// unreserved is the RFC 7636 code-verifier alphabet.
const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

type Source struct{}

func (p Source) randString(n int, letters string) string {
	ret := make([]byte, n)
	for i := range n {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		ret[i] = letters[num.Int64()]
	}

	return string(ret)
}

// PKCE returns a fresh verifier/challenge pair. The verifier is stored with
// the pending login attempt and never leaves the server; only the challenge
// appears in the authorization redirect.
func (p Source) PKCE() PKCE {
	verifier := p.randString(verifierLength, unreserved)

	return PKCE{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		Method:    MethodS256,
	}
}

// Challenge derives the S256 code challenge for a verifier: the URL-safe,
// unpadded base64 encoding of the verifier's SHA-256 digest.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// State returns an opaque token bound to one login attempt. It is only ever
// compared for equality, never decoded.
func (p Source) State() string {
	return p.randString(64, unreserved)
}

func (p Source) AttemptID() string {
	return p.randString(32, unreserved)
}

func (p Source) SessionID() string {
	return p.randString(32, unreserved) // Entropy E = 32 * log2(66) = 193.4 bits
}

// Package csrf issues and validates HMAC-based double-submit CSRF tokens
// bound to a session ID.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const nonceLength = 64

func formMessage(sessionID, nonce string) []byte {
	return fmt.Appendf(nil, "%d!%s!%d!%s", len(sessionID), sessionID, len(nonce), nonce)
}

func NewToken(sessionID string, key []byte) string {
	buf := make([]byte, nonceLength)
	_, _ = rand.Read(buf)
	nonce := hex.EncodeToString(buf)

	hash := hmac.New(sha256.New, key)
	hash.Write(formMessage(sessionID, nonce))
	hmacValue := hash.Sum(nil)

	return hex.EncodeToString(hmacValue) + "." + hex.EncodeToString([]byte(nonce))
}

func Validate(token, sessionID string, key []byte) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return false
	}

	receivedHmacValue, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}

	nonce, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}

	hash := hmac.New(sha256.New, key)
	hash.Write(formMessage(sessionID, string(nonce)))
	expectedHmacValue := hash.Sum(nil)

	return hmac.Equal(receivedHmacValue, expectedHmacValue)
}

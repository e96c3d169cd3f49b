package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateState creates the random correlation token round-tripped through
// the identity provider as the OAuth state parameter. 16 random bytes,
// hex-encoded, matching what UAE PASS expects in the state query parameter.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSecureToken creates a cryptographically secure random token.
// Returns a base64 URL-encoded string suitable for one-shot secrets that
// never leave the process, e.g. the loopback callback guard.
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

package civic

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const nonceBytes = 24

// GenerateNonce returns a random url-safe nonce that passes validation.
func GenerateNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package util

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateToken returns n crypto-random bytes as unpadded URL-safe base64.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

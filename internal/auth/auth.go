// Package auth checks API keys for the mint endpoints.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Authenticator validates API keys against configured SHA-256 key hashes.
// Only hashes are kept in memory.
type Authenticator struct {
	hashes []string
}

// NewAuthenticator returns nil when keyHashes is empty, which leaves the
// protected endpoints open.
func NewAuthenticator(keyHashes []string) *Authenticator {
	var hashes []string
	for _, h := range keyHashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hashes = append(hashes, h)
		}
	}
	if len(hashes) == 0 {
		return nil
	}
	return &Authenticator{hashes: hashes}
}

// ValidateAPIKey reports whether apiKey hashes to one of the configured hashes.
func (a *Authenticator) ValidateAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("invalid API key")
	}
	keyHash := []byte(HashAPIKey(apiKey))

	// Compare against every hash so timing does not reveal which one matched
	match := 0
	for _, h := range a.hashes {
		match |= subtle.ConstantTimeCompare(keyHash, []byte(h))
	}
	if match != 1 {
		return fmt.Errorf("invalid API key")
	}
	return nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return strings.TrimSpace(parts[1]), nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

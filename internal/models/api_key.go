package models

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// APIKey is a configured API credential. The raw key value is never stored;
// only its SHA-256 hex hash and a short display prefix appear in config.
type APIKey struct {
	Name        string   `yaml:"name" json:"name"`
	KeyHash     string   `yaml:"key_hash" json:"key_hash"`
	Prefix      string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Permissions []string `yaml:"permissions" json:"permissions"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
}

// GenerateAPIKey produces a new random API key in the format rl_<44 url-safe base64 chars>.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 33) // 33 bytes → 44 base64url chars
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "rl_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIKey computes the SHA-256 hex digest of a raw API key.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether the raw key hashes to this key's stored hash,
// using a constant-time comparison.
func (ak *APIKey) Matches(rawKey string) bool {
	return subtle.ConstantTimeCompare([]byte(HashAPIKey(rawKey)), []byte(ak.KeyHash)) == 1
}

// HasPermission returns true when the key is enabled and possesses the
// required permission. "admin" implies everything; "write" implies "read".
func (ak *APIKey) HasPermission(required string) bool {
	if !ak.Enabled {
		return false
	}
	for _, p := range ak.Permissions {
		if p == required {
			return true
		}
		switch p {
		case "admin":
			return true
		case "write":
			if required == "read" {
				return true
			}
		}
	}
	return false
}

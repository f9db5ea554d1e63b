package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "LISTINGGEN_TOKEN_HMAC_KEY"

	// MinHMACKeyBytes is the shortest accepted HMAC key.
	MinHMACKeyBytes = 32

	rawTokenBytes     = 32
	fingerprintLength = 12
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher hashes tokens, keyed or unkeyed. The zero value uses plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns a hasher for key. An empty key selects SHA-256 mode.
func NewHasher(key []byte) Hasher {
	if len(key) == 0 {
		return Hasher{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return Hasher{key: k}
}

// HasherFromEnv builds a hasher from LISTINGGEN_TOKEN_HMAC_KEY.
// A blank value selects SHA-256 mode; a key shorter than minBytes is an error.
func HasherFromEnv(minBytes int) (Hasher, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return Hasher{}, nil
	}
	if minBytes > 0 && len(raw) < minBytes {
		return Hasher{}, fmt.Errorf("%s: %w", HMACEnvKey, ErrHMACKeyTooShort)
	}
	return NewHasher([]byte(raw)), nil
}

// Keyed reports whether the hasher uses HMAC.
func (h Hasher) Keyed() bool { return len(h.key) > 0 }

// Hash returns the 64-char hex digest of s.
func (h Hasher) Hash(s string) string {
	if !h.Keyed() {
		return HashSHA256Hex(s)
	}
	return HashHMACSHA256Hex(s, h.key)
}

// Fingerprint returns a short, stable identifier for a secret such as a
// license key. Surrounding whitespace is ignored. Empty input yields "".
func (h Hasher) Fingerprint(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	return h.Hash(secret)[:fingerprintLength]
}

// New returns a fresh URL-safe random token.
func New() (string, error) {
	b := make([]byte, rawTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Valid reports whether raw has the shape produced by New.
func Valid(raw string) bool {
	if raw == "" {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	return err == nil && len(b) == rawTokenBytes
}

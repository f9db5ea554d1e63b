package access

import (
	"crypto/subtle"
	"strings"

	"listinggen/cmd/security/passcode"
)

// Matcher checks candidate keys against the admin override code.
// The zero value never matches.
type Matcher struct {
	plain  string
	hash   string
	hasher passcode.Config
}

// NewMatcher builds a matcher from a plaintext code, an argon2id hash, or
// neither. When both are set the hash wins.
func NewMatcher(plain, hash string, cfg passcode.Config) Matcher {
	return Matcher{
		plain:  strings.TrimSpace(plain),
		hash:   strings.TrimSpace(hash),
		hasher: cfg,
	}
}

// Enabled reports whether an override is configured.
func (m Matcher) Enabled() bool { return m.plain != "" || m.hash != "" }

// Match reports whether candidate equals the override code after trimming.
func (m Matcher) Match(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}

	if m.hash != "" {
		ok, err := m.hasher.Verify(m.hash, candidate)
		return err == nil && ok
	}
	if m.plain == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(m.plain)) == 1
}

package app

import (
	"errors"

	"listinggen/cmd/security/token"
)

// ValidateSecurityConfig enforces the token hashing policy at startup.
// Under LISTINGGEN_REQUIRE_TOKEN_HMAC the hasher must be keyed.
func ValidateSecurityConfig(cfg Config, hasher token.Hasher) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}
	if !hasher.Keyed() {
		return errors.New("security policy: LISTINGGEN_REQUIRE_TOKEN_HMAC=true but LISTINGGEN_TOKEN_HMAC_KEY is missing")
	}
	return nil
}

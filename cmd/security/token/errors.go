package token

import "errors"

// Public, stable errors for callers.
var (
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
	ErrEmptyToken      = errors.New("empty token")
)

package passcode

import "errors"

// Public, stable errors for callers.
var (
	ErrCodeTooShort = errors.New("override code too short")
	ErrCodeTooLong  = errors.New("override code too long")
	ErrInvalidHash  = errors.New("invalid override code hash")
)

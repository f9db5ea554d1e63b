package listing

import "errors"

var (
	// ErrLocked is returned when a session without a license tries to generate.
	ErrLocked = errors.New("session is locked")

	// ErrNoOutput is returned when every completion came back empty.
	ErrNoOutput = errors.New("no text returned")

	// ErrBYOKKeyMissing is returned when a BYOK session has no API key stored.
	ErrBYOKKeyMissing = errors.New("byok api key missing")

	// ErrNotBYOK is returned when a non-BYOK session tries to store an API key.
	ErrNotBYOK = errors.New("session is not on the byok plan")
)

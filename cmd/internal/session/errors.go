package session

import "errors"

var (
	// ErrSessionNotFound is returned for unknown or malformed tokens.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session idled past its TTL.
	ErrSessionExpired = errors.New("session expired")

	// ErrGenerationInProgress is returned when a session is already generating.
	ErrGenerationInProgress = errors.New("generation already in progress")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)

package access

import (
	"errors"
	"fmt"
)

var (
	// ErrLicenseUnconfigured means the requested plan has no licensing product.
	ErrLicenseUnconfigured = errors.New("license product not configured")
	// ErrInvalidAccessKey is returned for every failed verification.
	ErrInvalidAccessKey = errors.New("invalid access key")
	// ErrRejected is the sentinel behind RejectedError.
	ErrRejected = errors.New("admission rejected")
)

// RejectedError carries the admission decision that blocked a request.
type RejectedError struct {
	Decision Decision
}

func (e *RejectedError) Error() string {
	switch e.Decision.Outcome {
	case QuotaExceeded:
		return fmt.Sprintf("daily limit reached; resets in %d minutes", e.Decision.MinutesLeft)
	case CooldownActive:
		return fmt.Sprintf("cooldown active; retry in %d seconds", e.Decision.SecondsLeft)
	default:
		return "admission rejected"
	}
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

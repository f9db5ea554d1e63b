package app

import "errors"

var (
	// ErrMissingCredential is returned when OPENAI_API_KEY is not set.
	ErrMissingCredential = errors.New("missing generation credential")

	// ErrConfig wraps any other invalid startup setting.
	ErrConfig = errors.New("invalid configuration")
)

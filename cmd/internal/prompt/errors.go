package prompt

import "errors"

// ErrInvalidRequest is matched by every *ValidationError.
var ErrInvalidRequest = errors.New("invalid listing request")

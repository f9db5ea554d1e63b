package listingapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"listinggen/cmd/internal/access"
	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/license"
	"listinggen/cmd/internal/listing"
	"listinggen/cmd/internal/prompt"
	"listinggen/cmd/internal/session"
)

// Problem is the client-facing shape of a service error.
type Problem struct {
	Status      int
	Code        string
	Message     string
	RetryAfter  time.Duration
	MinutesLeft int
	SecondsLeft int
	Fields      []prompt.FieldError
}

// Classify maps service errors to stable codes. Upstream error text never
// reaches the client.
func Classify(err error) Problem {
	var (
		ve  *prompt.ValidationError
		re  *access.RejectedError
		vre *generate.VariantError
	)

	switch {
	case errors.As(err, &ve):
		return Problem{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid listing request", Fields: ve.Fields}

	case errors.As(err, &re):
		d := re.Decision
		p := Problem{
			Status:      http.StatusTooManyRequests,
			Code:        d.Outcome.String(),
			RetryAfter:  d.RetryAfter(),
			MinutesLeft: d.MinutesLeft,
			SecondsLeft: d.SecondsLeft,
		}
		if d.Outcome == access.QuotaExceeded {
			p.Message = fmt.Sprintf("Daily limit reached. Try again in %d minutes.", d.MinutesLeft)
		} else {
			p.Message = fmt.Sprintf("Please wait %d seconds before generating again.", d.SecondsLeft)
		}
		return p

	case errors.As(err, &vre):
		return Problem{Status: http.StatusBadGateway, Code: "generation_failed", Message: fmt.Sprintf("Variant %d failed; no text was produced.", vre.Index)}

	case errors.Is(err, listing.ErrLocked):
		return Problem{Status: http.StatusForbidden, Code: "locked", Message: "enter a valid access key first"}
	case errors.Is(err, session.ErrGenerationInProgress):
		return Problem{Status: http.StatusConflict, Code: "generation_in_progress", Message: "a generation is already running"}
	case errors.Is(err, listing.ErrNoOutput):
		return Problem{Status: http.StatusUnprocessableEntity, Code: "no_output", Message: "No text returned."}
	case errors.Is(err, access.ErrInvalidAccessKey):
		return Problem{Status: http.StatusUnauthorized, Code: "invalid_access_key", Message: "invalid access key"}
	case errors.Is(err, access.ErrLicenseUnconfigured):
		return Problem{Status: http.StatusServiceUnavailable, Code: "license_unconfigured", Message: "licensing is not configured for this plan"}
	case errors.Is(err, license.ErrUnknownPlan):
		return Problem{Status: http.StatusBadRequest, Code: "invalid_plan", Message: "unknown plan"}
	case errors.Is(err, listing.ErrBYOKKeyMissing):
		return Problem{Status: http.StatusBadRequest, Code: "byok_key_missing", Message: "enter your own API key first"}
	case errors.Is(err, listing.ErrNotBYOK):
		return Problem{Status: http.StatusForbidden, Code: "not_byok", Message: "this session does not use its own API key"}
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
		return Problem{Status: http.StatusUnauthorized, Code: "no_session", Message: "session not found"}
	default:
		return Problem{Status: http.StatusInternalServerError, Code: "internal", Message: "internal error"}
	}
}

package license

import "fmt"

// Kind classifies the outcome of one verification call.
type Kind int

const (
	// Verified means the licensing API answered success=true.
	Verified Kind = iota
	// Rejected means the API answered success=false.
	Rejected
	// Transport means the request never produced a response (DNS, timeout, reset).
	Transport
	// HTTPStatus means the API answered with a non-2xx status.
	HTTPStatus
	// Malformed means a 2xx body could not be understood.
	Malformed
)

func (k Kind) String() string {
	switch k {
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	case Transport:
		return "transport_error"
	case HTTPStatus:
		return "http_status"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the explicit outcome of a verification call. Only Verified grants
// access; every other kind is reported to users as an invalid key.
type Result struct {
	Kind    Kind
	Status  int    // HTTP status when a response was received
	Message string // API message or transport error text, for logs only
}

// OK reports whether the key was verified.
func (r Result) OK() bool { return r.Kind == Verified }

// Package license verifies purchase keys with the external licensing API.
//
// Verification returns an explicit Result instead of an error so callers can
// log the failure kind (transport, HTTP status, malformed body, rejected key)
// while still showing users a single "invalid access key" message.
package license

// Package listingapi serves the JSON API under /api.
//
// Visitors are identified by an opaque HttpOnly session cookie. Errors use
// the body {"error":{"code","message"}} with stable codes; rejected
// generations carry Retry-After.
package listingapi

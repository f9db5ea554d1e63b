// Package token issues opaque session tokens and hashes them for lookup.
//
// Raw tokens only live in the client cookie. Servers key state by the hex
// digest:
//   - HMAC-SHA256(token, key) when LISTINGGEN_TOKEN_HMAC_KEY is set.
//   - SHA-256(token) otherwise, for local development.
//
// The same hasher produces short fingerprints of license keys so audit
// records never hold a raw key.
package token

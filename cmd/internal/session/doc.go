// Package session holds per-visitor state in memory.
//
// A Session owns its license, usage counters, generation history and the
// last batch of variants. Nothing is shared across sessions. Sessions are
// addressed by an opaque cookie token; the store keys them by the token's
// hash so raw tokens never sit in memory server-side.
//
// All Session methods are safe for concurrent use. A session admits one
// generation at a time; a second attempt while one is running fails with
// ErrGenerationInProgress so admission cannot be spent twice.
package session

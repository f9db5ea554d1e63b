// Package access implements admission control for generation requests.
//
// A session is Locked until an admin override matches or the licensing API
// verifies a key; it then stays Licensed for the rest of its life. Licensed
// sessions are further gated by a daily quota and a cooldown between
// generations, unless the override granted a bypass.
//
// Usage counters are reset lazily: the stored date is compared with today's
// date on every check rather than on a schedule.
package access

// Package listing ties the access controller, the prompt compiler and the
// completion client into the two user actions: unlocking a session and
// generating listing variants.
//
// Transports (the JSON API and the WebSocket gateway) call Service and map
// its errors to responses; they hold no policy of their own.
package listing

// Package realtime streams generation batches to browsers over a websocket
// using the listinggen.v1 envelope contract.
package realtime

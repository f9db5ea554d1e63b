package realtime

import (
	"sync"

	v1 "listinggen/shared/contracts/listing/v1"
)

// Client is one connected websocket for a visitor session.
//
// Send is never closed; generation goroutines may still hold it after the
// connection ends. done signals shutdown and Close is idempotent.
type Client struct {
	SessionID string
	Send      chan v1.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = wsMinSendQueueSize
	}
	return &Client{
		SessionID: sessionID,
		Send:      make(chan v1.Envelope, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close signals the client goroutines to stop.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

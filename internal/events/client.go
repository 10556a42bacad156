// README: Buffered channel subscriber drained by the SSE stream handler.
package events

import (
	"errors"
	"sync"
)

var (
	ErrClientClosed = errors.New("subscriber closed")
	ErrClientFull   = errors.New("subscriber buffer full")
)

// DefaultBuffer is the per-client frame queue length.
const DefaultBuffer = 64

// Client is a channel-backed Subscriber. The stream handler drains Frames
// and writes them to the connection; Send never blocks.
type Client struct {
	mu     sync.Mutex
	frames chan []byte
	done   chan struct{}
	closed bool
}

func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Client{frames: make(chan []byte, buffer), done: make(chan struct{})}
}

func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.frames <- frame:
		return nil
	default:
		return ErrClientFull
	}
}

// Frames yields queued frames.
func (c *Client) Frames() <-chan []byte { return c.frames }

// Done is closed once the client has been closed by either side.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close is idempotent. Frames already queued stay readable.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

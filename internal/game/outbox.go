// Package game provides the player and game-instance registries and the
// session coordination logic for the broker backend.
package game

import (
	"fmt"
	"sync"
)

// Outbox buffers outbound frames for one connection. The dispatcher pushes
// encoded messages into it and the gateway's write pump drains it, keeping
// sends fire-and-forget from the dispatcher's perspective.
type Outbox struct {
	id     string
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the given connection ID.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Outbox with an open frames channel.
func NewOutbox(id string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		id:     id,
		frames: make(chan []byte, bufferSize),
	}
}

// Push enqueues a frame for delivery.
//
// Postcondition: The frame is enqueued, or an error if the outbox is closed
// or full. A full outbox means the client is not draining its socket.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.id)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("outbox %s buffer full", o.id)
	}
}

// Frames returns the read-only frame channel drained by the write pump.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close marks the outbox as closed and closes the frame channel.
//
// Postcondition: The frame channel is closed. Further Push calls return an
// error. Close is idempotent.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

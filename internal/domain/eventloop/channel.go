package eventloop

import (
	"errors"
	"sync"
)

var (
	ErrPeerGone  = errors.New("eventloop: peer is gone")
	ErrQueueFull = errors.New("eventloop: queue is full")
)

// Sender is the send side of a script actor's queue
type Sender interface {
	Send(msg Message) error
}

// Receiver is the script actor's side of the queue
type Receiver interface {
	Messages() <-chan Message
	// Exiting is closed once Exit was sent, whether or not the queue had room for it
	Exiting() <-chan struct{}
	// Close tells senders the actor is gone. Idempotent.
	Close()
	Done() <-chan struct{}
}

// Channel is an in-memory script queue. Sends never block: the constellation
// must keep draining its own mailbox even when a script actor stalls.
// Exit is also signalled outside the queue so a full queue cannot lose it.
type Channel struct {
	queue     chan Message
	exiting   chan struct{}
	done      chan struct{}
	exitOnce  sync.Once
	closeOnce sync.Once
}

// NewChannel creates a queue with the given buffer
func NewChannel(buffer int) *Channel {
	if buffer <= 0 {
		buffer = 256
	}
	return &Channel{
		queue:   make(chan Message, buffer),
		exiting: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Send enqueues msg, or reports that the actor has gone away.
// Exit always succeeds while the actor is alive; it is queued when there is room.
func (c *Channel) Send(msg Message) error {
	select {
	case <-c.done:
		return ErrPeerGone
	default:
	}

	if _, ok := msg.(Exit); ok {
		c.exitOnce.Do(func() { close(c.exiting) })
		select {
		case c.queue <- msg:
		default:
		}
		return nil
	}

	select {
	case c.queue <- msg:
		return nil
	case <-c.done:
		return ErrPeerGone
	default:
		return ErrQueueFull
	}
}

// Messages returns the receive side
func (c *Channel) Messages() <-chan Message {
	return c.queue
}

// Exiting is closed by the first Exit
func (c *Channel) Exiting() <-chan struct{} {
	return c.exiting
}

// Close marks the actor as gone
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the actor has gone
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

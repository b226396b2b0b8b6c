package constellation

import (
	"errors"
	"sync"
)

var ErrDisconnected = errors.New("constellation: disconnected")

// Sender is the send side of the constellation mailbox
type Sender interface {
	Send(msg Message) error
}

// Mailbox is the constellation's inbound queue. Send blocks while the queue
// is full and fails once the actor has stopped.
type Mailbox struct {
	queue     chan Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewMailbox creates a mailbox holding up to size messages
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = 1024
	}
	return &Mailbox{
		queue: make(chan Message, size),
		done:  make(chan struct{}),
	}
}

// Send enqueues msg
func (m *Mailbox) Send(msg Message) error {
	select {
	case <-m.done:
		return ErrDisconnected
	default:
	}

	select {
	case m.queue <- msg:
		return nil
	case <-m.done:
		return ErrDisconnected
	}
}

// Close marks the actor as stopped. Queued messages are abandoned.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

// Done is closed when the actor has stopped
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Len returns the number of queued messages
func (m *Mailbox) Len() int {
	return len(m.queue)
}

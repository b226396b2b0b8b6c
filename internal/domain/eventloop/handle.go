package eventloop

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// loop is shared by every clone of a Handle
type loop struct {
	sender Sender
	logger *zap.Logger
	refs   int
	exit   exitGuard
}

// exitGuard sends Exit at most once per loop, whatever path releases the last reference
type exitGuard struct {
	once sync.Once
	sent bool
}

func (g *exitGuard) fire(l *loop) {
	g.once.Do(func() {
		g.sent = true
		if err := l.sender.Send(Exit{}); err != nil {
			// the actor may already be gone; nothing to propagate
			l.logger.Debug("Event loop exit not delivered", zap.Error(err))
		}
	})
}

// Handle is one reference to a script actor
type Handle struct {
	loop     *loop
	released bool
}

// New wraps sender in a fresh handle with one reference
func New(sender Sender, logger *zap.Logger) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handle{loop: &loop{sender: sender, logger: logger, refs: 1}}
}

// Clone adds a reference to the same script actor.
// Cloning a loop whose actor was already told to exit is an invariant violation.
func (h *Handle) Clone() *Handle {
	if !h.Live() {
		panic(fmt.Sprintf("eventloop: clone of exited loop %p", h.loop))
	}
	h.loop.refs++
	return &Handle{loop: h.loop}
}

// Send forwards msg to the script actor
func (h *Handle) Send(msg Message) error {
	if h.released {
		return ErrPeerGone
	}
	return h.loop.sender.Send(msg)
}

// Release drops this reference. The last release sends Exit to the actor.
// Releasing the same handle twice is a no-op.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.loop.refs--
	if h.loop.refs == 0 {
		h.loop.exit.fire(h.loop)
	}
}

// Live reports whether any reference to the actor remains
func (h *Handle) Live() bool {
	return h.loop.refs > 0
}

// Refs returns the number of live references to the actor
func (h *Handle) Refs() int {
	return h.loop.refs
}

// Same reports whether two handles reference the same script actor
func (h *Handle) Same(other *Handle) bool {
	return other != nil && h.loop == other.loop
}

// Exited reports whether Exit has been sent (or attempted)
func (h *Handle) Exited() bool {
	return h.loop.exit.sent
}

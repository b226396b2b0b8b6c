package constellation

import (
	"context"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Proxy is how code outside the actor talks to it. It is safe for concurrent
// use. After the first failed send it stops touching the mailbox for good.
type Proxy struct {
	sender       Sender
	disconnected *atomic.Bool
	logger       *zap.Logger
}

// NewProxy wraps sender with a fresh disconnect flag
func NewProxy(sender Sender, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{
		sender:       sender,
		disconnected: atomic.NewBool(false),
		logger:       logger,
	}
}

// Send delivers msg unless the constellation is known to be gone
func (p *Proxy) Send(msg Message) error {
	if p.disconnected.Load() {
		return ErrDisconnected
	}
	if err := p.sender.Send(msg); err != nil {
		if p.disconnected.CompareAndSwap(false, true) {
			p.logger.Warn("Constellation is gone, further messages are dropped",
				zap.String("message", msg.kind()),
				zap.Error(err))
		}
		return ErrDisconnected
	}
	return nil
}

// Disconnected reports whether a send has failed. It never goes back to false.
func (p *Proxy) Disconnected() bool {
	return p.disconnected.Load()
}

// Clone returns a proxy sharing the same sender and disconnect flag
func (p *Proxy) Clone() *Proxy {
	return &Proxy{
		sender:       p.sender,
		disconnected: p.disconnected,
		logger:       p.logger,
	}
}

// Sender exposes the underlying mailbox sender
func (p *Proxy) Sender() Sender {
	return p.sender
}

// QueryHistory asks for a tab's history and waits for the answer or ctx
func (p *Proxy) QueryHistory(ctx context.Context, top id.TopLevelBrowsingContextID) (HistoryResult, error) {
	reply := make(chan HistoryResult, 1)
	if err := p.Send(QueryHistory{TopLevel: top, Reply: reply}); err != nil {
		return HistoryResult{}, err
	}

	select {
	case result := <-reply:
		return result, nil
	case <-ctx.Done():
		return HistoryResult{}, ctx.Err()
	}
}

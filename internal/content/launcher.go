package content

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/constellation"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/eventloop"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/hangmonitor"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/resources"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Fetcher loads documents. resources.Loader is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*resources.Response, error)
}

// Config tunes content threads
type Config struct {
	// HangTimeout is how long a document may stay busy before a hang alert
	HangTimeout time.Duration
}

// Launcher turns spawn payloads into running content threads
type Launcher struct {
	endpoints *sandbox.Endpoints
	monitor   *hangmonitor.Monitor
	cfg       Config
	logger    *zap.Logger
}

// NewLauncher creates a launcher. monitor may be nil to disable hang reporting.
func NewLauncher(endpoints *sandbox.Endpoints, monitor *hangmonitor.Monitor, cfg Config, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HangTimeout <= 0 {
		cfg.HangTimeout = 3 * time.Second
	}
	return &Launcher{
		endpoints: endpoints,
		monitor:   monitor,
		cfg:       cfg,
		logger:    logger,
	}
}

// Launch runs a content thread for c until its event loop exits or ctx ends.
// It satisfies sandbox.LaunchFunc.
func (l *Launcher) Launch(ctx context.Context, c *sandbox.UnprivilegedContent) error {
	out, err := l.proxy(c.ConstellationEndpoint)
	if err != nil {
		// nobody to report to; closing the queue makes the constellation's sends fail
		if receiver, rerr := l.receiver(c.ScriptEndpoint); rerr == nil {
			receiver.Close()
		} else {
			l.endpoints.Discard(c.ScriptEndpoint)
		}
		return fmt.Errorf("launch %s: %w", c.Pipeline, err)
	}

	receiver, err := l.receiver(c.ScriptEndpoint)
	if err != nil {
		_ = out.Send(constellation.FrameCrashed{Pipeline: c.Pipeline, Reason: err.Error()})
		return fmt.Errorf("launch %s: %w", c.Pipeline, err)
	}

	fetcher, err := l.fetcher(c.ResourceEndpoint)
	if err != nil {
		receiver.Close()
		_ = out.Send(constellation.FrameCrashed{Pipeline: c.Pipeline, Reason: err.Error()})
		return fmt.Errorf("launch %s: %w", c.Pipeline, err)
	}

	t := &thread{
		receiver: receiver,
		out:      out,
		fetcher:  fetcher,
		monitor:  l.monitor,
		cfg:      l.cfg,
		scripts:  scriptSettings{enabled: c.ScriptsEnabled, timeout: c.ScriptTimeout},
		logger:   l.logger.With(zap.Uint32("namespace", uint32(c.Namespace))),
		docs:     make(map[id.PipelineID]*hosted),
	}
	return t.run(ctx, eventloop.NewPipeline{
		Pipeline:        c.Pipeline,
		BrowsingContext: c.BrowsingContext,
		TopLevel:        c.TopLevel,
		Parent:          c.Parent,
		URL:             c.URL,
		Generation:      history.Generation(c.Generation),
		LoadID:          c.LoadID,
	})
}

func (l *Launcher) proxy(name string) (*constellation.Proxy, error) {
	v, err := l.endpoints.Lookup(name)
	if err != nil {
		return nil, err
	}
	switch s := v.(type) {
	case *constellation.Proxy:
		return s.Clone(), nil
	case constellation.Sender:
		return constellation.NewProxy(s, l.logger), nil
	default:
		return nil, fmt.Errorf("%w: %s is %T, not a constellation sender", sandbox.ErrUnknownEndpoint, name, v)
	}
}

func (l *Launcher) receiver(token string) (eventloop.Receiver, error) {
	v, err := l.endpoints.Take(token)
	if err != nil {
		return nil, err
	}
	r, ok := v.(eventloop.Receiver)
	if !ok {
		return nil, fmt.Errorf("%w: script endpoint is %T, not a receiver", sandbox.ErrUnknownEndpoint, v)
	}
	return r, nil
}

func (l *Launcher) fetcher(name string) (Fetcher, error) {
	v, err := l.endpoints.Lookup(name)
	if err != nil {
		return nil, err
	}
	f, ok := v.(Fetcher)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, not a fetcher", sandbox.ErrUnknownEndpoint, name, v)
	}
	return f, nil
}

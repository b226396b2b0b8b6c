package constellation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/compositor"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/eventloop"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/pipeline"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/embedder"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Endpoint names published in the sandbox endpoint table
const (
	ConstellationEndpoint = "constellation"
	ResourceEndpoint      = "resources"
)

var ErrNoSuchBrowser = errors.New("constellation: no such browser")

// EventSink receives embedder events
type EventSink interface {
	Publish(e embedder.Event)
}

// Options configures a Constellation. Spawner and Endpoints are required.
type Options struct {
	// Namespace must be installed; nil installs id.ConstellationNamespace
	Namespace *id.Namespace
	// Allocator hands out namespaces to spawned content threads
	Allocator *id.NamespaceAllocator
	Mailbox   *Mailbox

	Spawner    sandbox.Spawner
	Endpoints  *sandbox.Endpoints
	Compositor *compositor.Compositor
	Events     EventSink
	Retention  RetentionPolicy
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger

	ScriptQueueSize int
	ScriptTimeout   time.Duration
	ScriptsEnabled  bool
}

// topLevel is the per-tab state
type topLevel struct {
	root  id.BrowsingContextID
	joint *history.JointHistory
}

// pendingLoad is a navigation waiting for its LoadComplete
type pendingLoad struct {
	pipeline id.PipelineID
	replace  bool
}

// loopKey selects the event loop a new pipeline joins
type loopKey struct {
	top  id.TopLevelBrowsingContextID
	site string
}

// Constellation owns browsing contexts, pipelines and session history.
// All state below is touched only by the Run goroutine.
type Constellation struct {
	opts    Options
	logger  *zap.Logger
	mailbox *Mailbox
	ns      *id.Namespace
	ctx     context.Context

	contexts   map[id.BrowsingContextID]*history.BrowsingContext
	pipelines  *pipeline.Index
	topLevels  map[id.TopLevelBrowsingContextID]*topLevel
	pending    map[id.BrowsingContextID]pendingLoad
	eventLoops map[loopKey]*eventloop.Handle
}

// New creates a constellation and publishes its proxy for content threads
func New(opts Options) (*Constellation, error) {
	if opts.Spawner == nil || opts.Endpoints == nil {
		return nil, errors.New("constellation: spawner and endpoints are required")
	}
	if opts.Namespace == nil {
		opts.Namespace = id.InstalledNamespace(id.ConstellationNamespace)
	}
	if _, err := opts.Namespace.ID(); err != nil {
		return nil, fmt.Errorf("constellation namespace: %w", err)
	}
	if opts.Allocator == nil {
		opts.Allocator = id.NewNamespaceAllocator()
	}
	if opts.Mailbox == nil {
		opts.Mailbox = NewMailbox(0)
	}
	if opts.Compositor == nil {
		opts.Compositor = compositor.New(opts.Logger)
	}
	if opts.Retention == nil {
		opts.Retention = NewLRURetention(8)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Constellation{
		opts:       opts,
		logger:     opts.Logger,
		mailbox:    opts.Mailbox,
		ns:         opts.Namespace,
		ctx:        context.Background(),
		contexts:   make(map[id.BrowsingContextID]*history.BrowsingContext),
		pipelines:  pipeline.NewIndex(),
		topLevels:  make(map[id.TopLevelBrowsingContextID]*topLevel),
		pending:    make(map[id.BrowsingContextID]pendingLoad),
		eventLoops: make(map[loopKey]*eventloop.Handle),
	}
	opts.Endpoints.Publish(ConstellationEndpoint, c.Proxy())
	return c, nil
}

// Proxy returns a new independently owned proxy to this constellation
func (c *Constellation) Proxy() *Proxy {
	return NewProxy(c.mailbox, c.logger)
}

// Done is closed once Run has returned and torn everything down
func (c *Constellation) Done() <-chan struct{} {
	return c.mailbox.Done()
}

// Run drains the mailbox until Exit or ctx ends, then tears down every
// pipeline. It must be called once.
func (c *Constellation) Run(ctx context.Context) error {
	c.ctx = ctx
	defer c.teardown()

	c.logger.Info("Constellation started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.mailbox.queue:
			c.opts.Metrics.SetMailboxDepth(c.mailbox.Len())
			if _, ok := msg.(Exit); ok {
				c.logger.Info("Constellation exiting")
				return nil
			}
			c.handle(msg)
		}
	}
}

func (c *Constellation) handle(msg Message) {
	switch m := msg.(type) {
	case NewTopLevel:
		c.handleNewTopLevel(m)
	case CloseTopLevel:
		c.handleCloseTopLevel(m)
	case LoadURL:
		c.handleLoadURL(m)
	case Navigate:
		c.handleNavigate(m)
	case LoadComplete:
		c.handleLoadComplete(m)
	case ScriptLoadedIFrame:
		c.handleIFrame(m)
	case PipelineExited:
		c.handlePipelineExited(m)
	case FrameCrashed:
		c.handleCrash(m.Pipeline, m.Reason)
	case RegisterBackgroundHangMonitor:
		c.handleRegisterHangMonitor(m)
	case HangAlert:
		c.handleHangAlert(m)
	case QueryHistory:
		c.handleQueryHistory(m)
	default:
		c.logger.Warn("Unhandled constellation message", zap.String("message", msg.kind()))
		return
	}

	c.opts.Metrics.RecordMessage(msg.kind())
	c.opts.Metrics.SetPipelinesActive(c.pipelines.Len())
	c.opts.Metrics.SetPipelinesRetained(c.opts.Retention.Len())
}

// teardown closes the mailbox first so every proxy degrades to a no-op, then
// exits every pipeline
func (c *Constellation) teardown() {
	c.mailbox.Close()

	for top := range c.topLevels {
		c.closeTopLevel(top)
	}
	for _, p := range c.pipelines.All() {
		c.closePipeline(p.ID)
	}
	c.eventLoops = make(map[loopKey]*eventloop.Handle)

	c.publish(embedder.Event{Type: embedder.Shutdown})
	c.logger.Info("Constellation stopped")
}

// safeCall runs a collaborator call, turning a panic into an error
func (c *Constellation) safeCall(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", what, r)
			c.logger.Error("Collaborator panicked", zap.String("call", what), zap.Any("panic", r))
		}
	}()
	return fn()
}

func (c *Constellation) publish(e embedder.Event) {
	if c.opts.Events == nil {
		return
	}
	_ = c.safeCall("embedder publish", func() error {
		c.opts.Events.Publish(e)
		return nil
	})
}

// sendToPipeline delivers msg to the pipeline's script actor. A dead peer is
// not an error for the constellation.
func (c *Constellation) sendToPipeline(p *pipeline.Pipeline, msg eventloop.Message) {
	if err := p.EventLoop.Send(msg); err != nil {
		c.logger.Debug("Script actor unreachable",
			zap.Stringer("pipeline", p.ID),
			zap.Error(err))
	}
}

func (c *Constellation) publishHistory(top id.TopLevelBrowsingContextID) {
	tl, ok := c.topLevels[top]
	if !ok {
		return
	}
	e := embedder.Event{Type: embedder.HistoryChanged, TopLevel: top.String()}
	if root, ok := c.contexts[tl.root]; ok {
		e.URL = root.Current().URL()
	}
	back, forward := tl.joint.Len()
	e.CanGoBack, e.CanGoForward = back > 0, forward > 0
	c.publish(e)
}

func (c *Constellation) handleRegisterHangMonitor(m RegisterBackgroundHangMonitor) {
	if m.Monitor == nil {
		return
	}
	p, ok := c.pipelines.Get(m.Pipeline)
	if !ok {
		m.Monitor.Unregister()
		return
	}
	if p.HangMonitor != nil && p.HangMonitor != m.Monitor {
		p.HangMonitor.Unregister()
	}
	p.HangMonitor = m.Monitor
}

func (c *Constellation) handleHangAlert(m HangAlert) {
	p, ok := c.pipelines.Get(m.Pipeline)
	if !ok {
		return
	}
	c.logger.Warn("Pipeline appears hung",
		zap.Stringer("pipeline", p.ID),
		zap.String("url", p.URL),
		zap.Duration("hung_for", m.HungFor))
	c.opts.Metrics.IncHangAlerts()
	c.publish(embedder.Event{
		Type:     embedder.HangDetected,
		TopLevel: p.TopLevel.String(),
		Pipeline: p.ID.String(),
		URL:      p.URL,
		HungFor:  m.HungFor.String(),
	})
}

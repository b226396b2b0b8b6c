package constellation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/document"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/eventloop"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/pipeline"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

type spawnRequest struct {
	browsingContext id.BrowsingContextID
	topLevel        id.TopLevelBrowsingContextID
	parent          *id.PipelineID
	url             string
	generation      history.Generation
	state           pipeline.State
}

// createPipeline allocates a pipeline, attaches it to an event loop and a
// render layer, and inserts it into the index
func (c *Constellation) createPipeline(req spawnRequest) (*pipeline.Pipeline, error) {
	pid, err := c.ns.NextPipelineID()
	if err != nil {
		return nil, fmt.Errorf("allocate pipeline: %w", err)
	}

	p := &pipeline.Pipeline{
		ID:              pid,
		BrowsingContext: req.browsingContext,
		TopLevel:        req.topLevel,
		Parent:          req.parent,
		URL:             req.url,
		State:           req.state,
		Generation:      req.generation,
		LoadID:          id.NewLoadID(),
	}
	if u, err := document.Parse(req.url); err == nil {
		p.Site = document.Site(u)
	}

	loop, err := c.attachEventLoop(p)
	if err != nil {
		return nil, err
	}
	p.EventLoop = loop
	p.Layer = c.opts.Compositor.CreateLayer(pid)
	c.pipelines.Insert(p)
	c.opts.Metrics.IncPipelinesSpawned()

	c.logger.Debug("Pipeline created",
		zap.Stringer("pipeline", pid),
		zap.Stringer("browsing_context", req.browsingContext),
		zap.Uint64("generation", uint64(req.generation)),
		zap.String("url", req.url),
		zap.Stringer("load_id", p.LoadID))
	return p, nil
}

// attachEventLoop joins a live event loop of the same tab and site, or
// spawns a new content thread
func (c *Constellation) attachEventLoop(p *pipeline.Pipeline) (*eventloop.Handle, error) {
	key := loopKey{top: p.TopLevel, site: p.Site}

	if shared, ok := c.eventLoops[key]; ok {
		if shared.Live() {
			h := shared.Clone()
			err := h.Send(eventloop.NewPipeline{
				Pipeline:        p.ID,
				BrowsingContext: p.BrowsingContext,
				TopLevel:        p.TopLevel,
				Parent:          p.Parent,
				URL:             p.URL,
				Generation:      p.Generation,
				LoadID:          p.LoadID,
			})
			if err == nil {
				return h, nil
			}
			c.logger.Debug("Shared event loop rejected pipeline, spawning a new one",
				zap.Stringer("pipeline", p.ID),
				zap.Error(err))
			h.Release()
		}
		delete(c.eventLoops, key)
	}

	h, err := c.spawnEventLoop(p)
	if err != nil {
		return nil, err
	}
	c.eventLoops[key] = h
	return h, nil
}

// spawnEventLoop starts a content thread whose first document is p
func (c *Constellation) spawnEventLoop(p *pipeline.Pipeline) (*eventloop.Handle, error) {
	queue := eventloop.NewChannel(c.opts.ScriptQueueSize)
	handle := eventloop.New(queue, c.logger)

	spawned := false
	defer func() {
		if !spawned {
			handle.Release()
			queue.Close()
		}
	}()

	token := c.opts.Endpoints.Put(queue)
	content := &sandbox.UnprivilegedContent{
		Namespace:             c.opts.Allocator.Next(),
		Pipeline:              p.ID,
		BrowsingContext:       p.BrowsingContext,
		TopLevel:              p.TopLevel,
		Parent:                p.Parent,
		URL:                   p.URL,
		Generation:            uint64(p.Generation),
		LoadID:                p.LoadID,
		ScriptEndpoint:        token,
		ConstellationEndpoint: ConstellationEndpoint,
		ResourceEndpoint:      ResourceEndpoint,
		ScriptsEnabled:        c.opts.ScriptsEnabled,
		ScriptTimeout:         c.opts.ScriptTimeout,
	}

	payload, err := sandbox.Encode(content)
	if err == nil {
		err = c.safeCall("spawn", func() error {
			return c.opts.Spawner.Spawn(c.ctx, payload)
		})
	}
	if err != nil {
		c.opts.Endpoints.Discard(token)
		c.opts.Metrics.IncSpawnFailures()
		return nil, fmt.Errorf("spawn content thread for %s: %w", p.ID, err)
	}

	spawned = true
	c.opts.Metrics.IncEventLoopsSpawned()
	return handle, nil
}

// retire makes a pipeline inactive and hands it to the retention policy
func (c *Constellation) retire(pid id.PipelineID) {
	p, ok := c.pipelines.Get(pid)
	if !ok {
		return
	}
	p.State = pipeline.StateInactive
	c.sendToPipeline(p, eventloop.SetActivity{Pipeline: pid, Active: false})

	for _, evicted := range c.opts.Retention.Retain(pid) {
		c.evict(evicted)
	}
}

// evict tears down a retained pipeline; its history entries become discarded
func (c *Constellation) evict(pid id.PipelineID) {
	p, ok := c.pipelines.Get(pid)
	if !ok || p.State != pipeline.StateInactive {
		return
	}
	c.logger.Debug("Evicting retained pipeline", zap.Stringer("pipeline", pid))
	c.closePipeline(pid)
}

// closePipeline removes a pipeline from every index and releases what it
// holds. Absent pipelines are ignored.
func (c *Constellation) closePipeline(pid id.PipelineID) {
	p, ok := c.pipelines.Remove(pid)
	if !ok {
		return
	}
	c.opts.Retention.Remove(pid)
	if pend, ok := c.pending[p.BrowsingContext]; ok && pend.pipeline == pid {
		delete(c.pending, p.BrowsingContext)
	}

	for _, child := range append([]id.BrowsingContextID(nil), p.Children...) {
		c.closeBrowsingContext(child)
	}
	if bc, ok := c.contexts[p.BrowsingContext]; ok {
		bc.DiscardPipeline(pid)
	}

	c.sendToPipeline(p, eventloop.ExitPipeline{Pipeline: pid})
	p.EventLoop.Release()
	c.opts.Compositor.RemoveLayer(p.Layer)
	if p.HangMonitor != nil {
		p.HangMonitor.Unregister()
	}

	c.logger.Debug("Pipeline closed",
		zap.Stringer("pipeline", pid),
		zap.Stringer("browsing_context", p.BrowsingContext))
}

// closeBrowsingContext closes a context with every pipeline in its history
func (c *Constellation) closeBrowsingContext(bcID id.BrowsingContextID) {
	bc, ok := c.contexts[bcID]
	if !ok {
		return
	}
	delete(c.contexts, bcID)

	if pend, ok := c.pending[bcID]; ok {
		delete(c.pending, bcID)
		c.closePipeline(pend.pipeline)
	}
	for _, entry := range bc.Entries() {
		if pid := entry.Pipeline(); !pid.IsZero() {
			c.closePipeline(pid)
		}
	}

	if tl, ok := c.topLevels[bc.TopLevel]; ok {
		tl.joint.Remove(bcID)
	}
	if bc.Parent != nil {
		if parent, ok := c.pipelines.Get(*bc.Parent); ok {
			parent.RemoveChild(bcID)
		}
	}
}

// dropEntry closes the pipeline of a history entry that left bc, unless
// another entry of bc still shows it
func (c *Constellation) dropEntry(bc *history.BrowsingContext, entry *history.EntryHandle) {
	pid := entry.Pipeline()
	if pid.IsZero() || bc.References(pid) {
		return
	}
	c.closePipeline(pid)
}

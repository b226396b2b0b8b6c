package constellation

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/document"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/pipeline"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/embedder"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// navigable returns raw, or an error document for it when it cannot be loaded
func navigable(raw string) string {
	if _, err := document.Parse(raw); err != nil {
		return document.ErrorURL("invalid-url", raw)
	}
	return raw
}

func (c *Constellation) handleNewTopLevel(m NewTopLevel) {
	if _, exists := c.topLevels[m.TopLevel]; exists {
		c.logger.Warn("Top-level browsing context already exists", zap.Stringer("top_level", m.TopLevel))
		return
	}

	target := navigable(m.URL)
	root := m.TopLevel.Root()
	p, err := c.createPipeline(spawnRequest{
		browsingContext: root,
		topLevel:        m.TopLevel,
		url:             target,
		state:           pipeline.StateActive,
	})
	if err != nil {
		c.logger.Error("Failed to create top-level pipeline",
			zap.Stringer("top_level", m.TopLevel),
			zap.String("url", target),
			zap.Error(err))
		c.publish(embedder.Event{
			Type:     embedder.TopLevelFailed,
			TopLevel: m.TopLevel.String(),
			URL:      target,
			Reason:   err.Error(),
		})
		return
	}

	c.contexts[root] = history.NewBrowsingContext(root, m.TopLevel, nil, p.ID, target)
	c.topLevels[m.TopLevel] = &topLevel{root: root, joint: history.NewJointHistory()}
	c.opts.Compositor.SetRoot(m.TopLevel, p.ID)
	c.opts.Metrics.RecordNavigation("top_level")

	c.logger.Info("Top-level browsing context created",
		zap.Stringer("top_level", m.TopLevel),
		zap.Stringer("pipeline", p.ID),
		zap.String("url", target))
	c.publish(embedder.Event{
		Type:     embedder.TopLevelCreated,
		TopLevel: m.TopLevel.String(),
		Pipeline: p.ID.String(),
		URL:      target,
		LoadID:   p.LoadID.String(),
	})
}

func (c *Constellation) handleCloseTopLevel(m CloseTopLevel) {
	if !c.closeTopLevel(m.TopLevel) {
		c.logger.Debug("Close of unknown top-level browsing context", zap.Stringer("top_level", m.TopLevel))
		return
	}
	c.publish(embedder.Event{Type: embedder.TopLevelClosed, TopLevel: m.TopLevel.String()})
}

func (c *Constellation) closeTopLevel(top id.TopLevelBrowsingContextID) bool {
	tl, ok := c.topLevels[top]
	if !ok {
		return false
	}
	delete(c.topLevels, top)
	c.closeBrowsingContext(tl.root)
	c.opts.Compositor.RemoveRoot(top)
	for key := range c.eventLoops {
		if key.top == top {
			delete(c.eventLoops, key)
		}
	}
	return true
}

func (c *Constellation) handleLoadURL(m LoadURL) {
	bc, ok := c.contexts[m.BrowsingContext]
	if !ok {
		c.logger.Debug("Load in unknown browsing context", zap.Stringer("browsing_context", m.BrowsingContext))
		return
	}
	if reason, stale := c.staleSource(m.Source, func(p *pipeline.Pipeline) bool {
		return p.BrowsingContext == bc.ID
	}); stale {
		c.discardStaleRequest(m.kind(), m.Source, reason)
		return
	}

	target := navigable(m.URL)
	generation := bc.AdvanceGeneration()

	// a newer navigation supersedes the one in flight
	if pend, ok := c.pending[bc.ID]; ok {
		delete(c.pending, bc.ID)
		c.closePipeline(pend.pipeline)
	}

	p, err := c.createPipeline(spawnRequest{
		browsingContext: bc.ID,
		topLevel:        bc.TopLevel,
		parent:          bc.Parent,
		url:             target,
		generation:      generation,
		state:           pipeline.StatePending,
	})
	if err != nil {
		c.logger.Error("Failed to start navigation",
			zap.Stringer("browsing_context", bc.ID),
			zap.String("url", target),
			zap.Error(err))
		return
	}
	c.pending[bc.ID] = pendingLoad{pipeline: p.ID, replace: m.Replace}

	kind := "load"
	if m.Replace {
		kind = "replace"
	}
	c.opts.Metrics.RecordNavigation(kind)
	c.publish(embedder.Event{
		Type:            embedder.LoadStarted,
		TopLevel:        bc.TopLevel.String(),
		BrowsingContext: bc.ID.String(),
		Pipeline:        p.ID.String(),
		URL:             target,
		LoadID:          p.LoadID.String(),
	})
}

func (c *Constellation) handleLoadComplete(m LoadComplete) {
	p, ok := c.pipelines.Get(m.Pipeline)
	if !ok {
		c.discardStale(m, "pipeline gone")
		return
	}
	bc, ok := c.contexts[p.BrowsingContext]
	if !ok {
		c.discardStale(m, "browsing context gone")
		return
	}
	if m.Generation != p.Generation || !bc.IsCurrentGeneration(m.Generation) {
		c.discardStale(m, "generation superseded")
		return
	}

	if m.URL != "" {
		p.URL = m.URL
	}
	if m.Title != "" {
		p.Title = m.Title
	}
	if pend, ok := c.pending[bc.ID]; ok && pend.pipeline == p.ID {
		c.commit(bc, p, pend.replace)
	}

	c.publish(embedder.Event{
		Type:            embedder.LoadComplete,
		TopLevel:        p.TopLevel.String(),
		BrowsingContext: bc.ID.String(),
		Pipeline:        p.ID.String(),
		URL:             p.URL,
		Title:           p.Title,
		LoadID:          p.LoadID.String(),
	})
}

// staleSource reports why a script request from source no longer speaks for
// its document. A zero source is the embedder and is never stale.
func (c *Constellation) staleSource(source id.PipelineID, belongs func(*pipeline.Pipeline) bool) (string, bool) {
	if source.IsZero() {
		return "", false
	}
	p, ok := c.pipelines.Get(source)
	if !ok {
		return "pipeline gone", true
	}
	if !belongs(p) {
		return "wrong browsing context", true
	}
	if p.State != pipeline.StateActive && p.State != pipeline.StatePending {
		return "document inactive", true
	}
	return "", false
}

func (c *Constellation) discardStaleRequest(kind string, source id.PipelineID, reason string) {
	c.opts.Metrics.IncStaleDiscarded()
	c.logger.Debug("Discarding stale script request",
		zap.String("message", kind),
		zap.Stringer("pipeline", source),
		zap.String("reason", reason))
}

func (c *Constellation) discardStale(m LoadComplete, reason string) {
	c.opts.Metrics.IncStaleDiscarded()
	c.logger.Debug("Discarding stale load",
		zap.Stringer("pipeline", m.Pipeline),
		zap.Uint64("generation", uint64(m.Generation)),
		zap.String("reason", reason))
}

// commit makes a loaded pending pipeline current
func (c *Constellation) commit(bc *history.BrowsingContext, p *pipeline.Pipeline, replace bool) {
	delete(c.pending, bc.ID)
	old := bc.Current().Pipeline()
	p.State = pipeline.StateActive

	if replace {
		bc.ReplacePipeline(p.ID, p.URL)
		if !old.IsZero() {
			if bc.References(old) {
				c.retire(old)
			} else {
				c.closePipeline(old)
			}
		}
	} else {
		for _, entry := range bc.Navigate(p.ID, p.URL) {
			c.dropEntry(bc, entry)
		}
		if tl, ok := c.topLevels[bc.TopLevel]; ok {
			for _, other := range tl.joint.Push(bc.ID) {
				if other == bc.ID {
					continue
				}
				if oc, ok := c.contexts[other]; ok {
					for _, entry := range oc.ClearForward() {
						c.dropEntry(oc, entry)
					}
				}
			}
		}
		if !old.IsZero() {
			c.retire(old)
		}
	}

	if bc.IsTopLevel() {
		c.opts.Compositor.SetRoot(bc.TopLevel, p.ID)
	}
	c.logger.Debug("Navigation committed",
		zap.Stringer("browsing_context", bc.ID),
		zap.Stringer("pipeline", p.ID),
		zap.Bool("replace", replace),
		zap.String("url", p.URL))
	c.publishHistory(bc.TopLevel)
}

func (c *Constellation) handleIFrame(m ScriptLoadedIFrame) {
	parent, ok := c.pipelines.Get(m.Parent)
	if !ok {
		return
	}
	bcID, err := c.ns.NextBrowsingContextID()
	if err != nil {
		c.logger.Error("Failed to allocate browsing context", zap.Error(err))
		return
	}

	target := navigable(m.URL)
	parentID := parent.ID
	p, err := c.createPipeline(spawnRequest{
		browsingContext: bcID,
		topLevel:        parent.TopLevel,
		parent:          &parentID,
		url:             target,
		state:           pipeline.StateActive,
	})
	if err != nil {
		c.logger.Error("Failed to create iframe pipeline",
			zap.Stringer("pipeline", parent.ID),
			zap.String("url", target),
			zap.Error(err))
		return
	}

	c.contexts[bcID] = history.NewBrowsingContext(bcID, parent.TopLevel, &parentID, p.ID, target)
	parent.AddChild(bcID)
	c.opts.Metrics.RecordNavigation("iframe")
}

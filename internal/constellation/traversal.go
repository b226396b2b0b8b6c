package constellation

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/eventloop"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/pipeline"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

func (c *Constellation) handleNavigate(m Navigate) {
	tl, ok := c.topLevels[m.TopLevel]
	if !ok {
		c.logger.Debug("Traversal of unknown top-level browsing context", zap.Stringer("top_level", m.TopLevel))
		return
	}
	if reason, stale := c.staleSource(m.Source, func(p *pipeline.Pipeline) bool {
		return p.TopLevel == m.TopLevel
	}); stale {
		c.discardStaleRequest(m.kind(), m.Source, reason)
		return
	}

	steps := m.Steps
	if steps < 1 {
		steps = 1
	}
	moved := false
	for i := 0; i < steps; i++ {
		bcID, ok := tl.joint.Step(m.Direction)
		if !ok {
			break
		}
		if c.traverse(bcID, m.Direction) {
			moved = true
		}
	}

	if moved {
		c.opts.Metrics.RecordTraversal(m.Direction.String())
		c.publishHistory(m.TopLevel)
	}
}

// traverse moves one browsing context one entry in direction d
func (c *Constellation) traverse(bcID id.BrowsingContextID, d history.Direction) bool {
	bc, ok := c.contexts[bcID]
	if !ok {
		return false
	}

	from := bc.Current().Pipeline()
	var entry *history.EntryHandle
	var moved bool
	if d == history.Back {
		entry, moved = bc.Back()
	} else {
		entry, moved = bc.Forward()
	}
	if !moved {
		return false
	}

	generation := bc.AdvanceGeneration()
	if pend, ok := c.pending[bcID]; ok {
		delete(c.pending, bcID)
		c.closePipeline(pend.pipeline)
	}

	c.activate(bc, entry, generation)
	if !from.IsZero() && from != entry.Pipeline() {
		c.retire(from)
	}
	return true
}

// activate shows entry's document again, reloading it when its pipeline was discarded
func (c *Constellation) activate(bc *history.BrowsingContext, entry *history.EntryHandle, generation history.Generation) {
	target := entry.Pipeline()
	if p, ok := c.pipelines.Get(target); ok && !target.IsZero() {
		c.opts.Retention.Remove(target)
		p.State = pipeline.StateActive
		c.sendToPipeline(p, eventloop.SetActivity{Pipeline: target, Active: true})
	} else {
		p, err := c.createPipeline(spawnRequest{
			browsingContext: bc.ID,
			topLevel:        bc.TopLevel,
			parent:          bc.Parent,
			url:             entry.URL(),
			generation:      generation,
			state:           pipeline.StateActive,
		})
		if err != nil {
			c.logger.Error("Failed to reload history entry",
				zap.Stringer("browsing_context", bc.ID),
				zap.String("url", entry.URL()),
				zap.Error(err))
			bc.UpdatePipeline(id.PipelineID{})
			return
		}
		bc.UpdatePipeline(p.ID)
		target = p.ID
		c.opts.Metrics.RecordNavigation("reload")
	}

	if bc.IsTopLevel() {
		c.opts.Compositor.SetRoot(bc.TopLevel, target)
	}
}

package constellation

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/document"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/pipeline"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/embedder"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// handlePipelineExited treats an exit the constellation did not ask for as a crash
func (c *Constellation) handlePipelineExited(m PipelineExited) {
	if _, ok := c.pipelines.Get(m.Pipeline); !ok {
		return
	}
	reason := "exited"
	if m.Reason != "" {
		reason = "exited: " + m.Reason
	}
	c.handleCrash(m.Pipeline, reason)
}

// handleCrash removes a crashed pipeline. A crashed current document is
// replaced by a recovery document through the same history entry, so the
// entry keeps its URL and stays navigable. Repeated reports are no-ops.
func (c *Constellation) handleCrash(pid id.PipelineID, reason string) {
	p, ok := c.pipelines.Get(pid)
	if !ok {
		c.logger.Debug("Crash of unknown pipeline ignored", zap.Stringer("pipeline", pid))
		return
	}

	bc := c.contexts[p.BrowsingContext]
	wasCurrent := bc != nil && bc.Current().Pipeline() == pid

	c.logger.Warn("Pipeline crashed",
		zap.Stringer("pipeline", pid),
		zap.Stringer("browsing_context", p.BrowsingContext),
		zap.String("url", p.URL),
		zap.String("reason", reason))
	c.opts.Metrics.IncCrashes()
	c.closePipeline(pid)

	if wasCurrent {
		entryURL := bc.Current().URL()
		recovery, err := c.createPipeline(spawnRequest{
			browsingContext: bc.ID,
			topLevel:        bc.TopLevel,
			parent:          bc.Parent,
			url:             document.CrashURL(entryURL),
			generation:      bc.Generation(),
			state:           pipeline.StateActive,
		})
		if err != nil {
			c.logger.Error("Failed to create recovery document",
				zap.Stringer("browsing_context", bc.ID),
				zap.Error(err))
			bc.UpdatePipeline(id.PipelineID{})
		} else {
			bc.UpdatePipeline(recovery.ID)
			if bc.IsTopLevel() {
				c.opts.Compositor.SetRoot(bc.TopLevel, recovery.ID)
			}
		}
	}

	c.publish(embedder.Event{
		Type:            embedder.PipelineCrashed,
		TopLevel:        p.TopLevel.String(),
		BrowsingContext: p.BrowsingContext.String(),
		Pipeline:        pid.String(),
		URL:             p.URL,
		Reason:          reason,
	})
}

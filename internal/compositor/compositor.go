// Package compositor keeps the render-layer bookkeeping for pipelines: one
// layer per live document and one root document per tab.
package compositor

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// LayerID is the opaque render-layer reference held by a pipeline
type LayerID uint64

// Compositor tracks render layers and per-tab roots
type Compositor struct {
	mu     sync.RWMutex
	logger *zap.Logger
	next   LayerID
	layers map[LayerID]id.PipelineID
	roots  map[id.TopLevelBrowsingContextID]id.PipelineID
}

// New creates an empty compositor
func New(logger *zap.Logger) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{
		logger: logger,
		layers: make(map[LayerID]id.PipelineID),
		roots:  make(map[id.TopLevelBrowsingContextID]id.PipelineID),
	}
}

// CreateLayer allocates a layer for pipeline
func (c *Compositor) CreateLayer(pipeline id.PipelineID) LayerID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	c.layers[c.next] = pipeline
	return c.next
}

// RemoveLayer frees a layer. Unknown layers are ignored.
func (c *Compositor) RemoveLayer(layer LayerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pipeline, ok := c.layers[layer]
	if !ok {
		return
	}
	delete(c.layers, layer)
	for top, root := range c.roots {
		if root == pipeline {
			delete(c.roots, top)
		}
	}
}

// SetRoot makes pipeline the painted root of a tab
func (c *Compositor) SetRoot(top id.TopLevelBrowsingContextID, pipeline id.PipelineID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.roots[top]; ok && prev == pipeline {
		return
	}
	c.roots[top] = pipeline
	c.logger.Debug("Frame tree root changed",
		zap.Stringer("top_level", top),
		zap.Stringer("pipeline", pipeline),
	)
}

// RemoveRoot forgets a closed tab
func (c *Compositor) RemoveRoot(top id.TopLevelBrowsingContextID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roots, top)
}

// Root returns the painted root of a tab
func (c *Compositor) Root(top id.TopLevelBrowsingContextID) (id.PipelineID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.roots[top]
	return p, ok
}

// Layers returns the number of live layers
func (c *Compositor) Layers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.layers)
}

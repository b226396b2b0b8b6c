// Package pipeline holds the constellation's record of live documents.
package pipeline

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/compositor"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/eventloop"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// State of a pipeline in its lifecycle
type State int

const (
	// StatePending: spawned, document not yet loaded
	StatePending State = iota
	// StateActive: the current document of its browsing context
	StateActive
	// StateInactive: loaded but not current, kept for fast traversal
	StateInactive
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// HangMonitor is the opaque hang-monitor registration of a pipeline
type HangMonitor interface {
	Unregister()
}

// Pipeline is one live document instance
type Pipeline struct {
	ID              id.PipelineID
	BrowsingContext id.BrowsingContextID
	TopLevel        id.TopLevelBrowsingContextID
	Parent          *id.PipelineID

	URL   string
	Title string
	Site  string
	State State

	// Generation is the navigation generation the pipeline was created for
	Generation history.Generation
	LoadID     id.LoadID

	EventLoop   *eventloop.Handle
	Layer       compositor.LayerID
	HangMonitor HangMonitor

	// Children are nested browsing contexts created by this document
	Children []id.BrowsingContextID
}

// AddChild records a nested browsing context
func (p *Pipeline) AddChild(bc id.BrowsingContextID) {
	p.Children = append(p.Children, bc)
}

// RemoveChild forgets a nested browsing context
func (p *Pipeline) RemoveChild(bc id.BrowsingContextID) {
	for i, child := range p.Children {
		if child == bc {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			return
		}
	}
}

// Index maps pipeline ids to live pipelines
type Index struct {
	byID map[id.PipelineID]*Pipeline
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{byID: make(map[id.PipelineID]*Pipeline)}
}

// Insert adds p. A duplicate id is an invariant violation.
func (ix *Index) Insert(p *Pipeline) {
	if p.ID.IsZero() {
		panic("pipeline: insert of zero pipeline id")
	}
	if _, exists := ix.byID[p.ID]; exists {
		panic(fmt.Sprintf("pipeline: duplicate pipeline id %s", p.ID))
	}
	ix.byID[p.ID] = p
}

// Get looks up a pipeline
func (ix *Index) Get(pid id.PipelineID) (*Pipeline, bool) {
	p, ok := ix.byID[pid]
	return p, ok
}

// Remove deletes and returns a pipeline
func (ix *Index) Remove(pid id.PipelineID) (*Pipeline, bool) {
	p, ok := ix.byID[pid]
	if ok {
		delete(ix.byID, pid)
	}
	return p, ok
}

// Len returns the number of live pipelines
func (ix *Index) Len() int {
	return len(ix.byID)
}

// InContext returns the pipelines belonging to a browsing context
func (ix *Index) InContext(bc id.BrowsingContextID) []*Pipeline {
	var out []*Pipeline
	for _, p := range ix.byID {
		if p.BrowsingContext == bc {
			out = append(out, p)
		}
	}
	return out
}

// All returns every live pipeline
func (ix *Index) All() []*Pipeline {
	out := make([]*Pipeline, 0, len(ix.byID))
	for _, p := range ix.byID {
		out = append(out, p)
	}
	return out
}

package history

import (
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Generation orders navigations within one browsing context
type Generation uint64

// BrowsingContext is a frame slot and its back/forward list.
// It is owned by the constellation goroutine and not safe for concurrent use.
type BrowsingContext struct {
	ID       id.BrowsingContextID
	TopLevel id.TopLevelBrowsingContextID
	// Parent is the pipeline containing this context; nil for a top-level context.
	Parent *id.PipelineID

	current    *EntryHandle
	prev       []*EntryHandle // last element is the nearest back entry
	next       []*EntryHandle // last element is the nearest forward entry
	generation Generation
}

// NewBrowsingContext creates a context whose current entry shows pipeline at url
func NewBrowsingContext(bc id.BrowsingContextID, top id.TopLevelBrowsingContextID, parent *id.PipelineID, pipeline id.PipelineID, url string) *BrowsingContext {
	return &BrowsingContext{
		ID:       bc,
		TopLevel: top,
		Parent:   parent,
		current:  NewEntry(pipeline, url),
	}
}

// IsTopLevel reports whether the context is the root of a tab
func (bc *BrowsingContext) IsTopLevel() bool {
	return bc.Parent == nil
}

// Current returns the current entry handle
func (bc *BrowsingContext) Current() *EntryHandle {
	return bc.current
}

// Prev returns the back entries, oldest first
func (bc *BrowsingContext) Prev() []*EntryHandle {
	return append([]*EntryHandle(nil), bc.prev...)
}

// Next returns the forward entries, farthest first
func (bc *BrowsingContext) Next() []*EntryHandle {
	return append([]*EntryHandle(nil), bc.next...)
}

// CanGoBack reports whether Back would move
func (bc *BrowsingContext) CanGoBack() bool { return len(bc.prev) > 0 }

// CanGoForward reports whether Forward would move
func (bc *BrowsingContext) CanGoForward() bool { return len(bc.next) > 0 }

// Navigate pushes the current entry onto prev, clears next and makes a new
// entry current. The cleared forward entries are returned so their documents
// can be retired.
func (bc *BrowsingContext) Navigate(pipeline id.PipelineID, url string) []*EntryHandle {
	bc.prev = append(bc.prev, bc.current)
	discarded := bc.ClearForward()
	bc.current = NewEntry(pipeline, url)
	return discarded
}

// ClearForward drops every forward entry and returns them
func (bc *BrowsingContext) ClearForward() []*EntryHandle {
	discarded := bc.next
	bc.next = nil
	return discarded
}

// Back moves one entry back. No handle is created; handles move between lists.
func (bc *BrowsingContext) Back() (*EntryHandle, bool) {
	if len(bc.prev) == 0 {
		return bc.current, false
	}
	last := len(bc.prev) - 1
	target := bc.prev[last]
	bc.prev[last] = nil
	bc.prev = bc.prev[:last]

	bc.next = append(bc.next, bc.current)
	bc.current = target
	return target, true
}

// Forward moves one entry forward
func (bc *BrowsingContext) Forward() (*EntryHandle, bool) {
	if len(bc.next) == 0 {
		return bc.current, false
	}
	last := len(bc.next) - 1
	target := bc.next[last]
	bc.next[last] = nil
	bc.next = bc.next[:last]

	bc.prev = append(bc.prev, bc.current)
	bc.current = target
	return target, true
}

// ReplacePipeline makes a new handle current without creating a history entry.
// Handles aliasing the old current entry keep the old pipeline.
func (bc *BrowsingContext) ReplacePipeline(pipeline id.PipelineID, url string) {
	bc.current = NewEntry(pipeline, url)
}

// UpdatePipeline re-points the current entry through its existing handle.
// Handles aliasing it observe the new pipeline; the URL is unchanged.
func (bc *BrowsingContext) UpdatePipeline(pipeline id.PipelineID) {
	bc.current.update(pipeline)
}

// DiscardPipeline re-points every non-current entry that shows pipeline to no
// document. It returns the number of entries touched.
func (bc *BrowsingContext) DiscardPipeline(pipeline id.PipelineID) int {
	n := 0
	for _, stack := range [][]*EntryHandle{bc.prev, bc.next} {
		for _, h := range stack {
			if h != bc.current && h.pipeline == pipeline {
				h.update(id.PipelineID{})
				n++
			}
		}
	}
	return n
}

// References reports whether any entry of the context shows pipeline
func (bc *BrowsingContext) References(pipeline id.PipelineID) bool {
	for _, h := range bc.Entries() {
		if h.pipeline == pipeline {
			return true
		}
	}
	return false
}

// Entries returns prev, current and next in chronological order
func (bc *BrowsingContext) Entries() []*EntryHandle {
	entries := make([]*EntryHandle, 0, len(bc.prev)+1+len(bc.next))
	entries = append(entries, bc.prev...)
	entries = append(entries, bc.current)
	for i := len(bc.next) - 1; i >= 0; i-- {
		entries = append(entries, bc.next[i])
	}
	return entries
}

// Generation returns the current navigation generation
func (bc *BrowsingContext) Generation() Generation {
	return bc.generation
}

// AdvanceGeneration starts a new navigation, invalidating responses for older ones
func (bc *BrowsingContext) AdvanceGeneration() Generation {
	bc.generation++
	return bc.generation
}

// IsCurrentGeneration reports whether a response tagged g is still wanted
func (bc *BrowsingContext) IsCurrentGeneration(g Generation) bool {
	return g == bc.generation
}

// Snapshot is a read-only copy of a context's history
type Snapshot struct {
	ID         id.BrowsingContextID
	Parent     *id.PipelineID
	Current    Entry
	Prev       []Entry
	Next       []Entry
	Generation Generation
}

// Snapshot copies the context's history
func (bc *BrowsingContext) Snapshot() Snapshot {
	s := Snapshot{
		ID:         bc.ID,
		Current:    bc.current.Snapshot(),
		Prev:       make([]Entry, 0, len(bc.prev)),
		Next:       make([]Entry, 0, len(bc.next)),
		Generation: bc.generation,
	}
	if bc.Parent != nil {
		parent := *bc.Parent
		s.Parent = &parent
	}
	for _, h := range bc.prev {
		s.Prev = append(s.Prev, h.Snapshot())
	}
	for i := len(bc.next) - 1; i >= 0; i-- {
		s.Next = append(s.Next, bc.next[i].Snapshot())
	}
	return s
}

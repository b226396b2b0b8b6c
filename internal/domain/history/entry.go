package history

import (
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Entry is a snapshot of one remembered navigation state
type Entry struct {
	Pipeline id.PipelineID
	URL      string
}

// Discarded reports whether the entry no longer has a live document
func (e Entry) Discarded() bool {
	return e.Pipeline.IsZero()
}

// EntryHandle references a shared, mutable entry
type EntryHandle struct {
	pipeline id.PipelineID
	url      string
}

// NewEntry allocates a fresh handle
func NewEntry(pipeline id.PipelineID, url string) *EntryHandle {
	return &EntryHandle{pipeline: pipeline, url: url}
}

// Pipeline returns the pipeline currently referenced by the entry
func (h *EntryHandle) Pipeline() id.PipelineID { return h.pipeline }

// URL returns the entry URL
func (h *EntryHandle) URL() string { return h.url }

// Snapshot copies the entry
func (h *EntryHandle) Snapshot() Entry {
	return Entry{Pipeline: h.pipeline, URL: h.url}
}

// Discarded reports whether the entry no longer has a live document
func (h *EntryHandle) Discarded() bool {
	return h.pipeline.IsZero()
}

// update re-points the entry; every alias observes the change
func (h *EntryHandle) update(pipeline id.PipelineID) {
	h.pipeline = pipeline
}

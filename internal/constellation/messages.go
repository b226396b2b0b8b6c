package constellation

import (
	"time"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/pipeline"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Message is anything the constellation mailbox accepts
type Message interface {
	kind() string
}

// NewTopLevel opens a tab showing url
type NewTopLevel struct {
	TopLevel id.TopLevelBrowsingContextID
	URL      string
}

// CloseTopLevel tears down a tab and every document in it
type CloseTopLevel struct {
	TopLevel id.TopLevelBrowsingContextID
}

// LoadURL starts a navigation in a browsing context. Replace commits without
// a new history entry.
type LoadURL struct {
	BrowsingContext id.BrowsingContextID
	URL             string
	Replace         bool
	// Source is the pipeline whose script asked for the load; zero for the embedder
	Source id.PipelineID
}

// Navigate traverses the joint session history of a tab
type Navigate struct {
	Direction history.Direction
	TopLevel  id.TopLevelBrowsingContextID
	// Steps defaults to 1
	Steps int
	// Source is the pipeline whose script asked for the traversal; zero for the embedder
	Source id.PipelineID
}

// LoadComplete reports that a pipeline's document finished loading
type LoadComplete struct {
	Pipeline   id.PipelineID
	Generation history.Generation
	// URL is the final URL after redirects; empty keeps the requested one
	URL   string
	Title string
}

// ScriptLoadedIFrame reports a nested browsing context found in a document
type ScriptLoadedIFrame struct {
	Parent id.PipelineID
	URL    string
}

// PipelineExited reports that a content thread stopped hosting a pipeline
type PipelineExited struct {
	Pipeline id.PipelineID
	Reason   string
}

// FrameCrashed reports that a pipeline died unexpectedly
type FrameCrashed struct {
	Pipeline id.PipelineID
	Reason   string
}

// RegisterBackgroundHangMonitor hands the constellation a pipeline's hang
// monitor registration so it is released with the pipeline
type RegisterBackgroundHangMonitor struct {
	Pipeline id.PipelineID
	Monitor  pipeline.HangMonitor
}

// HangAlert reports a pipeline that stopped making progress
type HangAlert struct {
	Pipeline id.PipelineID
	HungFor  time.Duration
}

// QueryHistory asks for a tab's session history. Reply must be buffered;
// the constellation never blocks on it.
type QueryHistory struct {
	TopLevel id.TopLevelBrowsingContextID
	Reply    chan<- HistoryResult
}

// Exit stops the actor and tears every pipeline down
type Exit struct{}

func (NewTopLevel) kind() string                   { return "new_top_level" }
func (CloseTopLevel) kind() string                 { return "close_top_level" }
func (LoadURL) kind() string                       { return "load_url" }
func (Navigate) kind() string                      { return "navigate" }
func (LoadComplete) kind() string                  { return "load_complete" }
func (ScriptLoadedIFrame) kind() string            { return "script_loaded_iframe" }
func (PipelineExited) kind() string                { return "pipeline_exited" }
func (FrameCrashed) kind() string                  { return "frame_crashed" }
func (RegisterBackgroundHangMonitor) kind() string { return "register_hang_monitor" }
func (HangAlert) kind() string                     { return "hang_alert" }
func (QueryHistory) kind() string                  { return "query_history" }
func (Exit) kind() string                          { return "exit" }

package eventloop

import (
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Message is anything a script actor accepts
type Message interface {
	scriptMessage()
}

// NewPipeline asks a running script actor to host another document
type NewPipeline struct {
	Pipeline        id.PipelineID
	BrowsingContext id.BrowsingContextID
	TopLevel        id.TopLevelBrowsingContextID
	Parent          *id.PipelineID
	URL             string
	Generation      history.Generation
	LoadID          id.LoadID
}

// ExitPipeline tears down one document; the actor keeps running
type ExitPipeline struct {
	Pipeline id.PipelineID
}

// SetActivity marks a document active (current) or inactive (retained in history)
type SetActivity struct {
	Pipeline id.PipelineID
	Active   bool
}

// Exit stops the script actor
type Exit struct{}

func (NewPipeline) scriptMessage()  {}
func (ExitPipeline) scriptMessage() {}
func (SetActivity) scriptMessage()  {}
func (Exit) scriptMessage()         {}

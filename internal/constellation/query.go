package constellation

import (
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// HistoryResult is a copy of one tab's session history
type HistoryResult struct {
	TopLevel id.TopLevelBrowsingContextID
	Found    bool
	// Contexts holds the root context first, then nested ones in creation order
	Contexts     []history.Snapshot
	CanGoBack    bool
	CanGoForward bool
}

func (c *Constellation) handleQueryHistory(m QueryHistory) {
	result := c.historyOf(m.TopLevel)
	select {
	case m.Reply <- result:
	default:
		c.logger.Warn("History reply dropped, reply channel is not ready",
			zap.Stringer("top_level", m.TopLevel))
	}
}

func (c *Constellation) historyOf(top id.TopLevelBrowsingContextID) HistoryResult {
	result := HistoryResult{TopLevel: top}
	tl, ok := c.topLevels[top]
	if !ok {
		return result
	}
	result.Found = true

	for _, bc := range c.contexts {
		if bc.TopLevel == top {
			result.Contexts = append(result.Contexts, bc.Snapshot())
		}
	}
	sort.Slice(result.Contexts, func(i, j int) bool {
		a, b := result.Contexts[i].ID, result.Contexts[j].ID
		if (a == tl.root) != (b == tl.root) {
			return a == tl.root
		}
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.Index < b.Index
	})

	back, forward := tl.joint.Len()
	result.CanGoBack, result.CanGoForward = back > 0, forward > 0
	return result
}

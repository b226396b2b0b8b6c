package constellation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

func pid(i uint32) id.PipelineID {
	return id.PipelineID{Namespace: 0, Index: i}
}

func TestLRURetention(t *testing.T) {
	r := NewLRURetention(2)

	assert.Empty(t, r.Retain(pid(1)))
	assert.Empty(t, r.Retain(pid(2)))
	assert.Equal(t, []id.PipelineID{pid(1)}, r.Retain(pid(3)))
	assert.Equal(t, 2, r.Len())

	r.Remove(pid(2))
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, r.Retain(pid(4)))
	assert.Equal(t, []id.PipelineID{pid(3)}, r.Retain(pid(5)))
}

func TestLRURetentionRetainAgainRefreshes(t *testing.T) {
	r := NewLRURetention(2)
	r.Retain(pid(1))
	r.Retain(pid(2))
	r.Retain(pid(1))

	assert.Equal(t, []id.PipelineID{pid(2)}, r.Retain(pid(3)))
}

func TestZeroRetention(t *testing.T) {
	r := NewLRURetention(0)
	assert.Equal(t, []id.PipelineID{pid(7)}, r.Retain(pid(7)))
	assert.Zero(t, r.Len())
	r.Remove(pid(7))
}

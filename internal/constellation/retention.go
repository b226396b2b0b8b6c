package constellation

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// RetentionPolicy decides how long inactive pipelines stay alive for
// traversal. It is only used from the actor goroutine.
type RetentionPolicy interface {
	// Retain records a pipeline that just became inactive and returns the
	// pipelines that must now be torn down.
	Retain(pipeline id.PipelineID) []id.PipelineID
	// Remove forgets a pipeline that was reactivated or closed
	Remove(pipeline id.PipelineID)
	Len() int
}

// NewLRURetention keeps the capacity most recently retired pipelines.
// Capacity zero retains nothing.
func NewLRURetention(capacity int) RetentionPolicy {
	if capacity <= 0 {
		return noRetention{}
	}

	r := &lruRetention{}
	cache, err := lru.NewWithEvict[id.PipelineID, struct{}](capacity, func(pipeline id.PipelineID, _ struct{}) {
		r.evicted = append(r.evicted, pipeline)
	})
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	r.cache = cache
	return r
}

type lruRetention struct {
	cache   *lru.Cache[id.PipelineID, struct{}]
	evicted []id.PipelineID
}

func (r *lruRetention) Retain(pipeline id.PipelineID) []id.PipelineID {
	r.evicted = nil
	r.cache.Add(pipeline, struct{}{})
	evicted := r.evicted
	r.evicted = nil
	return evicted
}

func (r *lruRetention) Remove(pipeline id.PipelineID) {
	// the eviction callback also fires on Remove; that is not an eviction
	r.cache.Remove(pipeline)
	r.evicted = nil
}

func (r *lruRetention) Len() int {
	return r.cache.Len()
}

type noRetention struct{}

func (noRetention) Retain(pipeline id.PipelineID) []id.PipelineID {
	return []id.PipelineID{pipeline}
}

func (noRetention) Remove(id.PipelineID) {}

func (noRetention) Len() int { return 0 }

package history

import (
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Direction of a traversal
type Direction int

const (
	Back Direction = iota
	Forward
)

func (d Direction) String() string {
	if d == Back {
		return "back"
	}
	return "forward"
}

// JointHistory records, for one tab, the browsing context of every history push
type JointHistory struct {
	past   []id.BrowsingContextID
	future []id.BrowsingContextID
}

// NewJointHistory returns an empty joint history
func NewJointHistory() *JointHistory {
	return &JointHistory{}
}

// Push records a navigation in bc. It returns the contexts whose forward
// entries are now unreachable and must be cleared.
func (j *JointHistory) Push(bc id.BrowsingContextID) []id.BrowsingContextID {
	cleared := unique(j.future)
	j.future = nil
	j.past = append(j.past, bc)
	return cleared
}

// Step pops the next context to traverse in direction d
func (j *JointHistory) Step(d Direction) (id.BrowsingContextID, bool) {
	from, to := &j.past, &j.future
	if d == Forward {
		from, to = &j.future, &j.past
	}
	if len(*from) == 0 {
		return id.BrowsingContextID{}, false
	}
	last := len(*from) - 1
	bc := (*from)[last]
	*from = (*from)[:last]
	*to = append(*to, bc)
	return bc, true
}

// Remove forgets every record of bc, used when a nested context is destroyed
func (j *JointHistory) Remove(bc id.BrowsingContextID) {
	j.past = without(j.past, bc)
	j.future = without(j.future, bc)
}

// Len returns the number of back and forward records
func (j *JointHistory) Len() (back, forward int) {
	return len(j.past), len(j.future)
}

func without(ids []id.BrowsingContextID, drop id.BrowsingContextID) []id.BrowsingContextID {
	out := ids[:0]
	for _, bc := range ids {
		if bc != drop {
			out = append(out, bc)
		}
	}
	return out
}

func unique(ids []id.BrowsingContextID) []id.BrowsingContextID {
	seen := make(map[id.BrowsingContextID]bool, len(ids))
	out := make([]id.BrowsingContextID, 0, len(ids))
	for _, bc := range ids {
		if !seen[bc] {
			seen[bc] = true
			out = append(out, bc)
		}
	}
	return out
}

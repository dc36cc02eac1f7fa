package animator

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-core/engine/animation"
)

// State is one node of an animation graph: a clip played at a fixed speed.
type State struct {
	// Clip indexes the owning model's clip list.
	Clip int

	// Speed scales dt before it is added to the state's elapsed time.
	Speed float32

	Wrap     animation.WrapMode
	Boundary animation.BoundaryMode
}

// Transition is a blend from whatever state is current into To over BlendTime seconds.
type Transition struct {
	To        int
	BlendTime float32
}

// Graph is the immutable set of states and transitions an Animator walks.
type Graph struct {
	States      []State
	Transitions []Transition
}

// Validate reports whether every transition targets an existing state.
func (g Graph) Validate() error {
	if len(g.States) == 0 {
		return ErrEmptyGraph
	}
	for i, tr := range g.Transitions {
		if tr.To < 0 || tr.To >= len(g.States) {
			return fmt.Errorf("%w: transition %d targets state %d", ErrUnknownState, i, tr.To)
		}
	}
	return nil
}

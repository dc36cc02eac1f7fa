// Package animator implements the per-entity animation state machine driven by the simulation goroutine.
package animator

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrTransitionInProgress is returned when a transition is requested while another one is still blending.
	ErrTransitionInProgress = errors.New("animator: attempted transition while previous transition still playing")

	// ErrUnknownTransition is returned for a transition index outside the graph.
	ErrUnknownTransition = errors.New("animator: unknown transition")

	// ErrUnknownState is returned for a state index outside the graph.
	ErrUnknownState = errors.New("animator: unknown state")

	// ErrEmptyGraph is returned when a graph has no states.
	ErrEmptyGraph = errors.New("animator: graph has no states")
)

// animator is the implementation of the Animator interface.
type animator struct {
	mu *sync.Mutex

	graph  Graph
	status Status
}

// Animator is the live animation state of one entity.
//
// An Animator is either playing a single state (Steady) or blending from one state into the
// target of a transition (Blending). Only one transition may play at a time; requesting another
// while blending fails instead of overriding or queueing it. The simulation goroutine owns and
// advances animators; other goroutines read them through immutable Snapshots.
type Animator interface {
	// Graph returns the states and transitions this animator walks.
	//
	// Returns:
	//   - Graph: the animation graph
	Graph() Graph

	// Status returns the current playback state.
	//
	// Returns:
	//   - Status: a Steady or Blending value
	Status() Status

	// Transition starts blending from the current state into the target of the given transition.
	// The blend starts with the current state's elapsed time on the from side and zero on the target side.
	//
	// Parameters:
	//   - transition: the index into Graph().Transitions
	//
	// Returns:
	//   - error: ErrTransitionInProgress if a blend is already playing, ErrUnknownTransition for a bad index
	Transition(transition int) error

	// Update advances playback by dt seconds, scaled by each playing state's speed.
	// A blend whose target side has played longer than the transition's BlendTime is promoted
	// to a Steady target state that keeps the accumulated target time as its phase.
	//
	// Parameters:
	//   - dt: the simulation step in seconds
	Update(dt float32)

	// Snapshot projects the current playback state into an immutable value.
	//
	// Returns:
	//   - Snapshot: a SteadySnapshot or BlendSnapshot
	Snapshot() Snapshot

	// IsBlending returns whether a transition is currently playing.
	//
	// Returns:
	//   - bool: true while blending
	IsBlending() bool

	// BlendProgress returns how far the current transition has progressed.
	//
	// Returns:
	//   - float32: 0.0 (start) to 1.0 (complete), or 0 when not blending
	BlendProgress() float32
}

var _ Animator = &animator{}

// New creates an Animator over graph, starting in Steady{State: 0, Elapsed: 0} unless an option says otherwise.
//
// Parameters:
//   - graph: the states and transitions to walk
//   - options: variadic list of AnimatorBuilderOption functions to configure the Animator
//
// Returns:
//   - Animator: the animator
//   - error: ErrEmptyGraph, or ErrUnknownState for a transition or initial state outside the graph
func New(graph Graph, options ...AnimatorBuilderOption) (Animator, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	a := &animator{
		mu:     &sync.Mutex{},
		graph:  graph,
		status: Steady{},
	}
	for _, opt := range options {
		opt(a)
	}
	if s, ok := a.status.(Steady); ok && (s.State < 0 || s.State >= len(graph.States)) {
		return nil, fmt.Errorf("%w: initial state %d", ErrUnknownState, s.State)
	}
	return a, nil
}

func (a *animator) Graph() Graph {
	return a.graph
}

func (a *animator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *animator) Transition(transition int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch s := a.status.(type) {
	case Steady:
		if transition < 0 || transition >= len(a.graph.Transitions) {
			return fmt.Errorf("%w: %d", ErrUnknownTransition, transition)
		}
		a.status = Blending{
			FromState:   s.State,
			Transition:  transition,
			FromElapsed: s.Elapsed,
		}
		return nil
	case Blending:
		return ErrTransitionInProgress
	}
	return nil
}

func (a *animator) Update(dt float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch s := a.status.(type) {
	case Steady:
		s.Elapsed += dt * a.graph.States[s.State].Speed
		a.status = s
	case Blending:
		tr := a.graph.Transitions[s.Transition]
		s.FromElapsed += dt * a.graph.States[s.FromState].Speed
		s.ToElapsed += dt * a.graph.States[tr.To].Speed
		if s.ToElapsed > tr.BlendTime {
			a.status = Steady{State: tr.To, Elapsed: s.ToElapsed}
			return
		}
		a.status = s
	}
}

func (a *animator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch s := a.status.(type) {
	case Steady:
		st := a.graph.States[s.State]
		return SteadySnapshot{
			Clip:     st.Clip,
			Wrap:     st.Wrap,
			Boundary: st.Boundary,
			Elapsed:  s.Elapsed,
		}
	case Blending:
		tr := a.graph.Transitions[s.Transition]
		from, to := a.graph.States[s.FromState], a.graph.States[tr.To]
		return BlendSnapshot{
			FromClip:      from.Clip,
			ToClip:        to.Clip,
			FromWrap:      from.Wrap,
			ToWrap:        to.Wrap,
			FromBoundary:  from.Boundary,
			ToBoundary:    to.Boundary,
			FromElapsed:   s.FromElapsed,
			ToElapsed:     s.ToElapsed,
			BlendDuration: tr.BlendTime,
		}
	}
	return nil
}

func (a *animator) IsBlending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.status.(Blending)
	return ok
}

func (a *animator) BlendProgress() float32 {
	snap, ok := a.Snapshot().(BlendSnapshot)
	if !ok {
		return 0
	}
	return snap.Fraction()
}

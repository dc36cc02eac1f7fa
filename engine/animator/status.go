package animator

// Status is the live playback state of an Animator. It is exactly one of Steady or Blending.
type Status interface {
	isStatus()
}

// Steady plays a single state.
type Steady struct {
	State   int
	Elapsed float32
}

// Blending crossfades from FromState into the target of Graph.Transitions[Transition].
type Blending struct {
	FromState   int
	Transition  int
	FromElapsed float32
	ToElapsed   float32
}

func (Steady) isStatus()   {}
func (Blending) isStatus() {}

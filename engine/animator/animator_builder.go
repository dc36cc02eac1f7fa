package animator

// AnimatorBuilderOption is a functional option for configuring an Animator during construction.
type AnimatorBuilderOption func(*animator)

// WithInitialState is an option builder that starts the Animator in the given state instead of state 0.
//
// Parameters:
//   - state: the index into Graph.States
//   - elapsed: the starting phase of that state in seconds
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the initial state to an animator
func WithInitialState(state int, elapsed float32) AnimatorBuilderOption {
	return func(a *animator) {
		a.status = Steady{State: state, Elapsed: elapsed}
	}
}

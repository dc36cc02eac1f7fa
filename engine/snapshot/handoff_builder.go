package snapshot

import "github.com/Carmen-Shannon/oxy-core/common"

// HandoffBuilderOption is a functional option for configuring a Handoff via NewHandoff.
type HandoffBuilderOption func(*Handoff)

// WithClock is an option builder that sets the clock used to stamp published snapshots.
//
// Parameters:
//   - c: the clock; nil keeps the monotonic default
//
// Returns:
//   - HandoffBuilderOption: a function that applies the clock to a handoff
func WithClock(c common.Clock) HandoffBuilderOption {
	return func(h *Handoff) {
		if c != nil {
			h.clock = c
		}
	}
}

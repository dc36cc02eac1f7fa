package animation

import "github.com/chewxy/math32"

// WrapMode maps an unbounded playback time into a clip's [0, Duration] range.
type WrapMode uint8

const (
	// WrapClamp holds the first or last frame outside the clip range.
	WrapClamp WrapMode = iota
	// WrapRepeat loops the clip.
	WrapRepeat
	// WrapPingPong plays the clip forward then backward.
	WrapPingPong
)

func (m WrapMode) String() string {
	switch m {
	case WrapClamp:
		return "clamp"
	case WrapRepeat:
		return "repeat"
	case WrapPingPong:
		return "ping-pong"
	}
	return "invalid"
}

// Apply maps t into [0, duration] according to the mode. A non-positive duration maps everything to 0.
func (m WrapMode) Apply(t, duration float32) float32 {
	if duration <= 0 {
		return 0
	}
	switch m {
	case WrapRepeat:
		r := math32.Mod(t, duration)
		if r < 0 {
			r += duration
		}
		return r
	case WrapPingPong:
		period := 2 * duration
		r := math32.Mod(math32.Abs(t), period)
		if r > duration {
			r = period - r
		}
		return r
	default:
		return min(max(t, 0), duration)
	}
}

// BoundaryMode decides what a channel yields for a clip time before its first or after its last key.
type BoundaryMode uint8

const (
	// BoundaryClamp holds the nearest edge key.
	BoundaryClamp BoundaryMode = iota
	// BoundaryLoop interpolates from the last key back to the first across the clip end,
	// so repeating clips whose keys do not cover the whole duration stay continuous.
	BoundaryLoop
)

func (m BoundaryMode) String() string {
	switch m {
	case BoundaryClamp:
		return "clamp"
	case BoundaryLoop:
		return "loop"
	}
	return "invalid"
}

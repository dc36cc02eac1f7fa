package animator

import (
	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/animation"
)

// Snapshot is an immutable projection of an Animator, safe to hand to other goroutines.
// It is exactly one of SteadySnapshot or BlendSnapshot.
type Snapshot interface {
	isSnapshot()
}

// SteadySnapshot samples one clip at Elapsed seconds.
type SteadySnapshot struct {
	Clip     int
	Wrap     animation.WrapMode
	Boundary animation.BoundaryMode
	Elapsed  float32
}

// BlendSnapshot samples two clips and mixes them by ToElapsed/BlendDuration.
type BlendSnapshot struct {
	FromClip     int
	ToClip       int
	FromWrap     animation.WrapMode
	ToWrap       animation.WrapMode
	FromBoundary animation.BoundaryMode
	ToBoundary   animation.BoundaryMode
	FromElapsed  float32
	ToElapsed    float32

	BlendDuration float32
}

func (SteadySnapshot) isSnapshot() {}
func (BlendSnapshot) isSnapshot()  {}

// Fraction returns the blend weight of the target clip.
func (b BlendSnapshot) Fraction() float32 {
	return animation.BlendFraction(b.ToElapsed, b.BlendDuration)
}

// LerpSnapshot interpolates the playback phases of two snapshots of the same animator.
// Phases are only interpolated when both snapshots play the same clips in the same shape;
// otherwise b is returned as is.
//
// Parameters:
//   - a: the earlier snapshot
//   - b: the later snapshot
//   - t: the interpolation fraction in [0, 1]
//
// Returns:
//   - Snapshot: the interpolated snapshot, nil only when both inputs are nil
func LerpSnapshot(a, b Snapshot, t float32) Snapshot {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	switch bv := b.(type) {
	case SteadySnapshot:
		av, ok := a.(SteadySnapshot)
		if !ok || av.Clip != bv.Clip {
			return b
		}
		bv.Elapsed = common.Lerp(av.Elapsed, bv.Elapsed, t)
		return bv
	case BlendSnapshot:
		av, ok := a.(BlendSnapshot)
		if !ok || av.FromClip != bv.FromClip || av.ToClip != bv.ToClip {
			return b
		}
		bv.FromElapsed = common.Lerp(av.FromElapsed, bv.FromElapsed, t)
		bv.ToElapsed = common.Lerp(av.ToElapsed, bv.ToElapsed, t)
		return bv
	}
	return b
}

// Package pose buffers asynchronously computed skeletal poses per entity so the renderer can
// query and interpolate them at any instant.
package pose

import (
	"github.com/Carmen-Shannon/oxy-core/common"
)

// Pose is a full set of local joint transforms for one skeleton at one instant.
type Pose struct {
	Time   common.Tick
	Joints []common.Transform
}

// Result is the outcome of Storage.Query. It is exactly one of Nothing, One or Two.
type Result interface {
	isResult()
}

// Nothing means no sample is stored for the entity yet.
type Nothing struct{}

// One is a single sample to use as is: the query time was before the earliest or at/after the latest sample.
type One struct {
	Pose Pose
}

// Two brackets the query time: Before.Time <= t < After.Time.
type Two struct {
	Before Pose
	After  Pose
}

func (Nothing) isResult() {}
func (One) isResult()     {}
func (Two) isResult()     {}

// Sample resolves a query result to joint transforms at time t, interpolating a bracketing pair.
//
// Parameters:
//   - r: the result of a Query
//   - t: the time that was queried
//
// Returns:
//   - []common.Transform: the joint transforms
//   - bool: false when r is Nothing
func Sample(r Result, t common.Tick) ([]common.Transform, bool) {
	switch v := r.(type) {
	case One:
		return v.Pose.Joints, true
	case Two:
		span := v.After.Time - v.Before.Time
		if span == 0 || t <= v.Before.Time {
			return v.Before.Joints, true
		}
		frac := float32(float64(t-v.Before.Time) / float64(span))
		return common.LerpTransforms(nil, v.Before.Joints, v.After.Joints, common.Clamp01(frac)), true
	}
	return nil, false
}

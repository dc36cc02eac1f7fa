// Package animation holds skeleton and clip data and the CPU sampling routines the worker
// pool runs to turn a clip time into a pose.
package animation

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnsortedKeys is returned by Clip.Validate when a channel's keyframes are not in ascending time order.
	ErrUnsortedKeys = errors.New("animation: keyframes not sorted by time")

	// ErrBoneIndex is returned when a channel or bone references a joint outside the skeleton.
	ErrBoneIndex = errors.New("animation: bone index out of range")
)

// Bone represents a single joint in a skeleton hierarchy.
type Bone struct {
	// Name is the bone's identifier (for debugging and animation targeting).
	Name string

	// ParentIndex is the index of the parent bone (-1 for root bones).
	ParentIndex int32

	// Rest is the bone's transform relative to its parent when no channel animates it.
	Rest common.Transform
}

// Skeleton is an ordered joint hierarchy. Pose joint i always corresponds to Bones[i].
type Skeleton struct {
	// Bones is the array of all bones in the skeleton.
	Bones []Bone

	// BoneNameToIndex maps bone names to their indices for quick lookup.
	BoneNameToIndex map[string]int32
}

// NewSkeleton builds a Skeleton from bones and indexes them by name.
//
// Parameters:
//   - bones: the joints, parents listed before children
//
// Returns:
//   - *Skeleton: the skeleton
//   - error: ErrBoneIndex if a parent index is out of range or not earlier in the list
func NewSkeleton(bones []Bone) (*Skeleton, error) {
	s := &Skeleton{
		Bones:           bones,
		BoneNameToIndex: make(map[string]int32, len(bones)),
	}
	for i, b := range bones {
		if b.ParentIndex >= int32(i) || b.ParentIndex < -1 {
			return nil, fmt.Errorf("%w: bone %d (%q) has parent %d", ErrBoneIndex, i, b.Name, b.ParentIndex)
		}
		if b.Name != "" {
			s.BoneNameToIndex[b.Name] = int32(i)
		}
	}
	return s, nil
}

// JointCount returns the number of joints in the skeleton.
func (s *Skeleton) JointCount() int {
	if s == nil {
		return 0
	}
	return len(s.Bones)
}

// RestPose returns a fresh slice holding every bone's rest transform.
func (s *Skeleton) RestPose() []common.Transform {
	out := make([]common.Transform, s.JointCount())
	for i := range out {
		out[i] = s.Bones[i].Rest
	}
	return out
}

// Clip represents a single animation (walk, run, attack, etc.).
type Clip struct {
	// Name is the animation identifier.
	Name string

	// Duration is the total length of the animation in seconds.
	Duration float32

	// Channels contains animation data for each animated bone.
	Channels []Channel
}

// Channel contains keyframe data for a single bone. Any of the key lists may be empty,
// in which case that component keeps the bone's rest value.
type Channel struct {
	BoneIndex int32

	PositionKeys []VectorKeyframe
	RotationKeys []QuaternionKeyframe
	ScaleKeys    []VectorKeyframe
}

// VectorKeyframe stores a 3D vector value at a specific time in seconds.
type VectorKeyframe struct {
	Time  float32
	Value mgl32.Vec3
}

// QuaternionKeyframe stores a rotation at a specific time in seconds.
type QuaternionKeyframe struct {
	Time  float32
	Value mgl32.Quat
}

// Validate checks that every channel targets a joint of skel and that keyframes are ascending.
//
// Parameters:
//   - skel: the skeleton the clip will be sampled against, or nil to skip the joint check
//
// Returns:
//   - error: ErrBoneIndex or ErrUnsortedKeys wrapped with the offending channel
func (c *Clip) Validate(skel *Skeleton) error {
	for i, ch := range c.Channels {
		if ch.BoneIndex < 0 || (skel != nil && int(ch.BoneIndex) >= skel.JointCount()) {
			return fmt.Errorf("%w: clip %q channel %d targets bone %d", ErrBoneIndex, c.Name, i, ch.BoneIndex)
		}
		if !ascending(ch.PositionKeys, vecTime) || !ascending(ch.RotationKeys, quatTime) || !ascending(ch.ScaleKeys, vecTime) {
			return fmt.Errorf("%w: clip %q channel %d", ErrUnsortedKeys, c.Name, i)
		}
	}
	return nil
}

func ascending[K any](keys []K, timeOf func(K) float32) bool {
	for i := 1; i < len(keys); i++ {
		if timeOf(keys[i]) < timeOf(keys[i-1]) {
			return false
		}
	}
	return true
}

func vecTime(k VectorKeyframe) float32      { return k.Time }
func quatTime(k QuaternionKeyframe) float32 { return k.Time }

package animation

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-core/common"
)

// Sample evaluates clip against skel at playback time t and returns one transform per joint.
// Joints without a channel keep their rest transform.
//
// Parameters:
//   - skel: the skeleton whose joint order the pose follows
//   - clip: the clip to sample, or nil for the rest pose
//   - t: the playback time in seconds, before wrapping
//   - wrap: how t is mapped into the clip range
//   - boundary: what channels yield outside their key range
//
// Returns:
//   - []common.Transform: the sampled local joint transforms
func Sample(skel *Skeleton, clip *Clip, t float32, wrap WrapMode, boundary BoundaryMode) []common.Transform {
	return SampleInto(nil, skel, clip, t, wrap, boundary)
}

// SampleInto is Sample writing into dst, which is grown as needed and returned.
func SampleInto(dst []common.Transform, skel *Skeleton, clip *Clip, t float32, wrap WrapMode, boundary BoundaryMode) []common.Transform {
	n := skel.JointCount()
	if cap(dst) < n {
		dst = make([]common.Transform, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = skel.Bones[i].Rest
	}
	if clip == nil {
		return dst
	}

	local := wrap.Apply(t, clip.Duration)
	for _, ch := range clip.Channels {
		if ch.BoneIndex < 0 || int(ch.BoneIndex) >= n {
			continue
		}
		out := &dst[ch.BoneIndex]
		if len(ch.PositionKeys) > 0 {
			i, j, f := bracket(ch.PositionKeys, local, clip.Duration, boundary, vecTime)
			out.Translation = common.LerpVec3(ch.PositionKeys[i].Value, ch.PositionKeys[j].Value, f)
		}
		if len(ch.RotationKeys) > 0 {
			i, j, f := bracket(ch.RotationKeys, local, clip.Duration, boundary, quatTime)
			out.Rotation = common.SlerpShortest(ch.RotationKeys[i].Value, ch.RotationKeys[j].Value, f)
		}
		if len(ch.ScaleKeys) > 0 {
			i, j, f := bracket(ch.ScaleKeys, local, clip.Duration, boundary, vecTime)
			out.Scale = common.LerpVec3(ch.ScaleKeys[i].Value, ch.ScaleKeys[j].Value, f)
		}
	}
	return dst
}

// Blend mixes two poses of the same skeleton, w = 0 yielding a and w = 1 yielding b.
func Blend(dst, a, b []common.Transform, w float32) []common.Transform {
	return common.LerpTransforms(dst, a, b, common.Clamp01(w))
}

// BlendFraction returns how far a blend of the given duration has progressed after blendTime seconds.
func BlendFraction(blendTime, duration float32) float32 {
	if duration <= 0 {
		return 1
	}
	return common.Clamp01(blendTime / duration)
}

// bracket finds the keys surrounding t and the interpolation factor between them.
// Keys must be non-empty and ascending.
func bracket[K any](keys []K, t, duration float32, boundary BoundaryMode, timeOf func(K) float32) (int, int, float32) {
	n := len(keys)
	if n == 1 {
		return 0, 0, 0
	}
	pos, found := slices.BinarySearchFunc(keys, t, func(k K, target float32) int {
		return cmp.Compare(timeOf(k), target)
	})
	if found {
		return pos, pos, 0
	}

	last := n - 1
	first, end := timeOf(keys[0]), timeOf(keys[last])
	switch {
	case pos == 0:
		if boundary != BoundaryLoop {
			return 0, 0, 0
		}
		span := duration - end + first
		if span <= 0 {
			return 0, 0, 0
		}
		return last, 0, common.Clamp01((duration - end + t) / span)
	case pos == n:
		if boundary != BoundaryLoop {
			return last, last, 0
		}
		span := duration - end + first
		if span <= 0 {
			return last, last, 0
		}
		return last, 0, common.Clamp01((t - end) / span)
	}

	t0, t1 := timeOf(keys[pos-1]), timeOf(keys[pos])
	if t1 <= t0 {
		return pos - 1, pos - 1, 0
	}
	return pos - 1, pos, (t - t0) / (t1 - t0)
}

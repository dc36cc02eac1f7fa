package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Lerp linearly interpolates between a and b by t.
//
// Parameters:
//   - a: value at t = 0
//   - b: value at t = 1
//   - t: interpolation factor, not clamped
//
// Returns:
//   - float32: the interpolated value
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Clamp01 clamps t to the [0, 1] range.
//
// Parameters:
//   - t: the value to clamp
//
// Returns:
//   - float32: t clamped to [0, 1]
func Clamp01(t float32) float32 {
	return mgl32.Clamp(t, 0, 1)
}

// LerpVec3 linearly interpolates each component of two vectors.
//
// Parameters:
//   - a: vector at t = 0
//   - b: vector at t = 1
//   - t: interpolation factor
//
// Returns:
//   - mgl32.Vec3: the interpolated vector
func LerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// SlerpShortest spherically interpolates two rotations along the shortest arc.
// The second quaternion is negated when the pair lies in opposite hemispheres so the
// interpolation never takes the long way around.
//
// Parameters:
//   - a: rotation at t = 0
//   - b: rotation at t = 1
//   - t: interpolation factor in [0, 1]
//
// Returns:
//   - mgl32.Quat: the interpolated unit quaternion
func SlerpShortest(a, b mgl32.Quat, t float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, t).Normalize()
}

// LerpTransform interpolates two transforms: translation and scale linearly, rotation spherically.
//
// Parameters:
//   - a: transform at t = 0
//   - b: transform at t = 1
//   - t: interpolation factor in [0, 1]
//
// Returns:
//   - Transform: the interpolated transform
func LerpTransform(a, b Transform, t float32) Transform {
	return Transform{
		Translation: LerpVec3(a.Translation, b.Translation, t),
		Rotation:    SlerpShortest(a.Rotation, b.Rotation, t),
		Scale:       LerpVec3(a.Scale, b.Scale, t),
	}
}

// LerpTransforms interpolates two equally sized joint slices into dst, growing dst if needed.
// If the slices differ in length, b is copied unchanged.
//
// Parameters:
//   - dst: destination slice, may be nil
//   - a: joints at t = 0
//   - b: joints at t = 1
//   - t: interpolation factor in [0, 1]
//
// Returns:
//   - []Transform: dst resliced to len(b)
func LerpTransforms(dst, a, b []Transform, t float32) []Transform {
	if cap(dst) < len(b) {
		dst = make([]Transform, len(b))
	}
	dst = dst[:len(b)]
	if len(a) != len(b) {
		copy(dst, b)
		return dst
	}
	for i := range b {
		dst[i] = LerpTransform(a[i], b[i], t)
	}
	return dst
}

// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types shared between the simulation and render sides.
package common

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// EntityID identifies a simulated entity across the simulation, worker and render goroutines.
// Zero is never issued and can be used as "no entity".
type EntityID uint64

// String renders the entity identifier for debugging purposes.
func (id EntityID) String() string {
	return fmt.Sprintf("Entity(%d)", uint64(id))
}

// Transform is a decomposed rigid transform (TRS) used for joints and instances.
// It is the unit of the pose wire contract: translation (3 floats), rotation quaternion (4 floats), scale (3 floats).
type Transform struct {
	// Translation is the position offset.
	Translation mgl32.Vec3

	// Rotation is the orientation as a unit quaternion.
	Rotation mgl32.Quat

	// Scale is the scale factor along each axis.
	Scale mgl32.Vec3
}

// IdentityTransform returns a Transform with no translation, identity rotation and unit scale.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Mat4 composes the transform into a column-major model matrix (T * R * S).
//
// Returns:
//   - mgl32.Mat4: the composed matrix
func (t Transform) Mat4() mgl32.Mat4 {
	tr := mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2])
	sc := mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	return tr.Mul4(t.Rotation.Normalize().Mat4()).Mul4(sc)
}

// TransformEpsilon is the per-component tolerance ApproxEqual allows. mgl32's default epsilon
// is below float32 resolution near 1, so it is not usable for sampled or interpolated values.
const TransformEpsilon = 1e-5

// ApproxEqual reports whether two transforms are equal within TransformEpsilon.
// Rotations are compared as orientations, so q and -q are considered equal.
//
// Parameters:
//   - other: the transform to compare against
//
// Returns:
//   - bool: true if all three components are approximately equal
func (t Transform) ApproxEqual(other Transform) bool {
	return t.Translation.ApproxEqualThreshold(other.Translation, TransformEpsilon) &&
		t.Scale.ApproxEqualThreshold(other.Scale, TransformEpsilon) &&
		t.Rotation.OrientationEqualThreshold(other.Rotation, TransformEpsilon)
}

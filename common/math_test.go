package common

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestLerpTransform(t *testing.T) {
	a := IdentityTransform()
	b := Transform{
		Translation: mgl32.Vec3{10, 0, -4},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{3, 3, 3},
	}

	mid := LerpTransform(a, b, 0.5)
	assert.InDelta(t, 5, mid.Translation[0], 1e-5)
	assert.InDelta(t, -2, mid.Translation[2], 1e-5)
	assert.InDelta(t, 2, mid.Scale[1], 1e-5)

	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})
	assert.True(t, mid.Rotation.OrientationEqualThreshold(want, TransformEpsilon), "got %v want %v", mid.Rotation, want)

	assert.True(t, LerpTransform(a, b, 0).ApproxEqual(a))
	assert.True(t, LerpTransform(a, b, 1).ApproxEqual(b))
}

func TestSlerpShortestTakesShortArc(t *testing.T) {
	q := mgl32.QuatRotate(mgl32.DegToRad(10), mgl32.Vec3{0, 0, 1})
	neg := q.Scale(-1)

	// q and -q are the same orientation; the shortest path between them is no rotation at all.
	mid := SlerpShortest(q, neg, 0.5)
	assert.True(t, mid.OrientationEqualThreshold(q, TransformEpsilon))
}

func TestApproxEqual(t *testing.T) {
	tr := Transform{
		Translation: mgl32.Vec3{1, 2, 3},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{1, 1, 1},
	}
	assert.True(t, IdentityTransform().ApproxEqual(IdentityTransform()))
	assert.True(t, tr.ApproxEqual(tr))

	flipped := tr
	flipped.Rotation = tr.Rotation.Scale(-1)
	assert.True(t, tr.ApproxEqual(flipped), "q and -q are one orientation")

	nudged := tr
	nudged.Translation[0] += 1e-7
	assert.True(t, tr.ApproxEqual(nudged))

	moved := tr
	moved.Translation[0] += 0.01
	assert.False(t, tr.ApproxEqual(moved))

	turned := tr
	turned.Rotation = mgl32.QuatRotate(mgl32.DegToRad(50), mgl32.Vec3{0, 1, 0})
	assert.False(t, tr.ApproxEqual(turned))
}

func TestLerpTransformsLengthMismatch(t *testing.T) {
	a := []Transform{IdentityTransform()}
	b := []Transform{IdentityTransform(), {Translation: mgl32.Vec3{1, 2, 3}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}}

	got := LerpTransforms(nil, a, b, 0.25)
	assert.Len(t, got, 2)
	assert.Equal(t, b[1], got[1])
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, float32(0), Clamp01(-3))
	assert.Equal(t, float32(1), Clamp01(7))
	assert.Equal(t, float32(0.25), Clamp01(0.25))
}

func TestTickConversions(t *testing.T) {
	assert.Equal(t, Tick(1500), TickFromDuration(1500*time.Microsecond))
	assert.Equal(t, Tick(0), TickFromDuration(-time.Second))
	assert.Equal(t, 2*time.Millisecond, Tick(2000).Duration())
	assert.InDelta(t, 0.5, Tick(500_000).Seconds(), 1e-9)
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(100)
	assert.Equal(t, Tick(100), c.Now())
	c.Advance(time.Millisecond)
	assert.Equal(t, Tick(1100), c.Now())
	c.Set(5)
	assert.Equal(t, Tick(5), c.Now())
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
	assert.Equal(t, 6, CoalescePositive(6, 0, -1))
	assert.Equal(t, 2, CoalescePositive(6, 0, 2, 3))
}

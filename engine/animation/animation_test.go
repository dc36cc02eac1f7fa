package animation

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoBoneSkeleton(t *testing.T) *Skeleton {
	t.Helper()
	rest := common.IdentityTransform()
	skel, err := NewSkeleton([]Bone{
		{Name: "root", ParentIndex: -1, Rest: rest},
		{Name: "arm", ParentIndex: 0, Rest: common.Transform{Translation: mgl32.Vec3{0, 1, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}},
	})
	require.NoError(t, err)
	return skel
}

// slideClip moves the root from x=0 at t=0 to x=10 at t=1.
func slideClip() *Clip {
	return &Clip{
		Name:     "slide",
		Duration: 1,
		Channels: []Channel{{
			BoneIndex: 0,
			PositionKeys: []VectorKeyframe{
				{Time: 0, Value: mgl32.Vec3{0, 0, 0}},
				{Time: 1, Value: mgl32.Vec3{10, 0, 0}},
			},
		}},
	}
}

func TestWrapModes(t *testing.T) {
	tests := []struct {
		name string
		mode WrapMode
		t    float32
		want float32
	}{
		{"clamp below", WrapClamp, -1, 0},
		{"clamp inside", WrapClamp, 0.25, 0.25},
		{"clamp above", WrapClamp, 3, 2},
		{"repeat inside", WrapRepeat, 0.5, 0.5},
		{"repeat wraps", WrapRepeat, 2.5, 0.5},
		{"repeat negative", WrapRepeat, -0.5, 1.5},
		{"ping-pong forward", WrapPingPong, 1.5, 1.5},
		{"ping-pong backward", WrapPingPong, 2.5, 1.5},
		{"ping-pong second lap", WrapPingPong, 4.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.mode.Apply(tt.t, 2), 1e-5)
		})
	}
	assert.Zero(t, WrapRepeat.Apply(5, 0))
}

func TestSampleInterpolatesAndKeepsRest(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := Sample(skel, slideClip(), 0.25, WrapClamp, BoundaryClamp)

	require.Len(t, pose, 2)
	assert.InDelta(t, 2.5, pose[0].Translation.X(), 1e-5)
	assert.True(t, pose[1].ApproxEqual(skel.Bones[1].Rest), "unanimated joints hold rest")

	rest := Sample(skel, nil, 0.5, WrapClamp, BoundaryClamp)
	assert.Equal(t, skel.RestPose(), rest)
}

func TestSampleWrapAffectsTime(t *testing.T) {
	skel := twoBoneSkeleton(t)
	clip := slideClip()

	assert.InDelta(t, 10, Sample(skel, clip, 1.5, WrapClamp, BoundaryClamp)[0].Translation.X(), 1e-5)
	assert.InDelta(t, 5, Sample(skel, clip, 1.5, WrapRepeat, BoundaryClamp)[0].Translation.X(), 1e-5)
	assert.InDelta(t, 5, Sample(skel, clip, 1.5, WrapPingPong, BoundaryClamp)[0].Translation.X(), 1e-5)
}

func TestBoundaryModes(t *testing.T) {
	skel := twoBoneSkeleton(t)
	// Keys cover [0.25, 0.75] of a 1s clip.
	clip := &Clip{
		Duration: 1,
		Channels: []Channel{{
			BoneIndex: 0,
			PositionKeys: []VectorKeyframe{
				{Time: 0.25, Value: mgl32.Vec3{0, 0, 0}},
				{Time: 0.75, Value: mgl32.Vec3{4, 0, 0}},
			},
		}},
	}

	held := Sample(skel, clip, 0.9, WrapRepeat, BoundaryClamp)
	assert.InDelta(t, 4, held[0].Translation.X(), 1e-5)

	// Looping span from 0.75 to 1.25 is 0.5s; 0.9 is 30% along from 4 to 0.
	looped := Sample(skel, clip, 0.9, WrapRepeat, BoundaryLoop)
	assert.InDelta(t, 2.8, looped[0].Translation.X(), 1e-4)

	// 0.1 sits 70% along the same span.
	early := Sample(skel, clip, 0.1, WrapRepeat, BoundaryLoop)
	assert.InDelta(t, 1.2, early[0].Translation.X(), 1e-4)
}

func TestSampleRotationShortestPath(t *testing.T) {
	skel := twoBoneSkeleton(t)
	q0 := mgl32.QuatRotate(0, mgl32.Vec3{0, 1, 0})
	q1 := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	clip := &Clip{
		Duration: 1,
		Channels: []Channel{{
			BoneIndex:    1,
			RotationKeys: []QuaternionKeyframe{{Time: 0, Value: q0}, {Time: 1, Value: q1.Scale(-1)}},
		}},
	}

	pose := Sample(skel, clip, 0.5, WrapClamp, BoundaryClamp)
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})
	assert.True(t, pose[1].Rotation.OrientationEqualThreshold(want, 1e-4))
}

func TestBlend(t *testing.T) {
	skel := twoBoneSkeleton(t)
	a := Sample(skel, slideClip(), 0, WrapClamp, BoundaryClamp)
	b := Sample(skel, slideClip(), 1, WrapClamp, BoundaryClamp)

	mid := Blend(nil, a, b, BlendFraction(0.25, 0.5))
	assert.InDelta(t, 5, mid[0].Translation.X(), 1e-5)

	assert.Equal(t, float32(1), BlendFraction(1, 0))
	assert.Equal(t, float32(1), BlendFraction(2, 1))
}

func TestValidate(t *testing.T) {
	skel := twoBoneSkeleton(t)
	clip := slideClip()
	assert.NoError(t, clip.Validate(skel))

	clip.Channels[0].BoneIndex = 5
	assert.ErrorIs(t, clip.Validate(skel), ErrBoneIndex)

	clip = slideClip()
	clip.Channels[0].PositionKeys[0].Time = 2
	assert.ErrorIs(t, clip.Validate(skel), ErrUnsortedKeys)

	_, err := NewSkeleton([]Bone{{Name: "child", ParentIndex: 0}})
	assert.ErrorIs(t, err, ErrBoneIndex)
}

func TestDecodeSkeletonAndClip(t *testing.T) {
	skel, err := DecodeSkeleton(strings.NewReader(`
[[bones]]
name = "root"
parent = -1

[[bones]]
name = "head"
parent = 0
translation = [0.0, 1.5, 0.0]
rotation = [0.0, 0.0, 0.0, 1.0]
scale = [2.0, 2.0, 2.0]
`))
	require.NoError(t, err)
	require.Equal(t, 2, skel.JointCount())
	assert.Equal(t, int32(1), skel.BoneNameToIndex["head"])
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, skel.Bones[0].Rest.Scale)
	assert.Equal(t, mgl32.QuatIdent(), skel.Bones[0].Rest.Rotation)
	assert.Equal(t, mgl32.Vec3{0, 1.5, 0}, skel.Bones[1].Rest.Translation)

	clip, err := DecodeClip(strings.NewReader(`
name = "nod"
duration = 1.0

[[channels]]
bone = 1

[[channels.position]]
time = 0.0
value = [0.0, 0.0, 0.0]

[[channels.position]]
time = 1.0
value = [0.0, 2.0, 0.0]
`))
	require.NoError(t, err)
	require.NoError(t, clip.Validate(skel))
	pose := Sample(skel, clip, 0.5, WrapClamp, BoundaryClamp)
	assert.InDelta(t, 1, pose[1].Translation.Y(), 1e-5)

	_, err = DecodeClip(strings.NewReader(`speed = 2.0`))
	assert.Error(t, err, "unknown keys are rejected")
}

package animation

import (
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

// Skeleton and clip files are TOML documents. Rotations are written x, y, z, w.
// A missing rotation means identity and a missing scale means one.

type skeletonFile struct {
	Bones []boneFile `toml:"bones"`
}

type boneFile struct {
	Name        string     `toml:"name"`
	Parent      int32      `toml:"parent"`
	Translation [3]float32 `toml:"translation"`
	Rotation    [4]float32 `toml:"rotation"`
	Scale       [3]float32 `toml:"scale"`
}

type clipFile struct {
	Name     string        `toml:"name"`
	Duration float32       `toml:"duration"`
	Channels []channelFile `toml:"channels"`
}

type channelFile struct {
	Bone     int32         `toml:"bone"`
	Position []vecKeyFile  `toml:"position"`
	Rotation []quatKeyFile `toml:"rotation"`
	Scale    []vecKeyFile  `toml:"scale"`
}

type vecKeyFile struct {
	Time  float32    `toml:"time"`
	Value [3]float32 `toml:"value"`
}

type quatKeyFile struct {
	Time  float32    `toml:"time"`
	Value [4]float32 `toml:"value"`
}

// DecodeSkeleton reads a TOML skeleton document.
//
// Parameters:
//   - r: the document source
//
// Returns:
//   - *Skeleton: the decoded skeleton
//   - error: a decode error or ErrBoneIndex for a malformed hierarchy
func DecodeSkeleton(r io.Reader) (*Skeleton, error) {
	var f skeletonFile
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&f); err != nil {
		return nil, fmt.Errorf("decode skeleton: %w", err)
	}
	bones := make([]Bone, len(f.Bones))
	for i, b := range f.Bones {
		bones[i] = Bone{
			Name:        b.Name,
			ParentIndex: b.Parent,
			Rest: common.Transform{
				Translation: b.Translation,
				Rotation:    quatFromXYZW(b.Rotation),
				Scale:       scaleOrOne(b.Scale),
			},
		}
	}
	return NewSkeleton(bones)
}

// DecodeClip reads a TOML clip document. The clip is validated without a skeleton.
//
// Parameters:
//   - r: the document source
//
// Returns:
//   - *Clip: the decoded clip
//   - error: a decode error, ErrBoneIndex or ErrUnsortedKeys
func DecodeClip(r io.Reader) (*Clip, error) {
	var f clipFile
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&f); err != nil {
		return nil, fmt.Errorf("decode clip: %w", err)
	}
	clip := &Clip{
		Name:     f.Name,
		Duration: f.Duration,
		Channels: make([]Channel, len(f.Channels)),
	}
	for i, ch := range f.Channels {
		out := Channel{BoneIndex: ch.Bone}
		for _, k := range ch.Position {
			out.PositionKeys = append(out.PositionKeys, VectorKeyframe{Time: k.Time, Value: k.Value})
		}
		for _, k := range ch.Rotation {
			out.RotationKeys = append(out.RotationKeys, QuaternionKeyframe{Time: k.Time, Value: quatFromXYZW(k.Value)})
		}
		for _, k := range ch.Scale {
			out.ScaleKeys = append(out.ScaleKeys, VectorKeyframe{Time: k.Time, Value: k.Value})
		}
		clip.Channels[i] = out
	}
	if err := clip.Validate(nil); err != nil {
		return nil, err
	}
	return clip, nil
}

func quatFromXYZW(v [4]float32) mgl32.Quat {
	if v == [4]float32{} {
		return mgl32.QuatIdent()
	}
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}.Normalize()
}

func scaleOrOne(v [3]float32) mgl32.Vec3 {
	if v == [3]float32{} {
		return mgl32.Vec3{1, 1, 1}
	}
	return v
}

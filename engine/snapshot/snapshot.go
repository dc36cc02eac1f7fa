// Package snapshot defines the immutable whole-scene snapshot the simulation publishes each tick
// and the lock-free handoff the renderer reads it from.
package snapshot

import (
	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/animator"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
	"github.com/go-gl/mathgl/mgl32"
)

// Snapshot is a point-in-time description of the scene. It is never mutated after Publish.
type Snapshot struct {
	Models      []ModelInstances
	Environment Environment
	Camera      Camera
}

// ModelInstances groups every instance drawn with one model.
type ModelInstances struct {
	Model     registry.HandleID
	Instances []Instance
}

// Instance is one placed copy of a model. Animation is nil for static instances.
type Instance struct {
	Entity    common.EntityID
	Transform common.Transform
	Animation animator.Snapshot
	Rig       Rig
}

// Rig names the assets an animated instance is posed from. Clip indices in Animation index Clips.
// Clips is shared between snapshots and must not be modified.
type Rig struct {
	Skeleton registry.HandleID
	Clips    []registry.HandleID
}

// Environment is the global lighting state.
type Environment struct {
	SunDirection mgl32.Vec3
	SunColor     mgl32.Vec3

	EnvironmentMap registry.HandleID
	Irradiance     registry.HandleID
}

// Camera is the viewer pose and projection parameters.
type Camera struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	FovY     float32
	Aspect   float32
	Near     float32
	Far      float32
}

// InstanceCount returns the number of instances across all models.
func (s *Snapshot) InstanceCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, m := range s.Models {
		n += len(m.Instances)
	}
	return n
}

// Lerp interpolates every continuous field between a and b. Instances are matched by entity;
// instances only present in b are taken as is. Discrete fields (asset ids, model grouping) come from b.
//
// Parameters:
//   - a: the earlier snapshot
//   - b: the later snapshot
//   - t: the interpolation fraction in [0, 1]
//
// Returns:
//   - *Snapshot: a new snapshot, or a or b unchanged when the other is nil or they are the same
func Lerp(a, b *Snapshot, t float32) *Snapshot {
	switch {
	case a == nil || a == b:
		return b
	case b == nil:
		return a
	}

	prev := make(map[common.EntityID]*Instance, a.InstanceCount())
	for mi := range a.Models {
		for ii := range a.Models[mi].Instances {
			inst := &a.Models[mi].Instances[ii]
			prev[inst.Entity] = inst
		}
	}

	out := &Snapshot{
		Models:      make([]ModelInstances, len(b.Models)),
		Environment: lerpEnvironment(a.Environment, b.Environment, t),
		Camera:      lerpCamera(a.Camera, b.Camera, t),
	}
	for mi, m := range b.Models {
		insts := make([]Instance, len(m.Instances))
		for ii, cur := range m.Instances {
			old, ok := prev[cur.Entity]
			if !ok {
				insts[ii] = cur
				continue
			}
			insts[ii] = Instance{
				Entity:    cur.Entity,
				Transform: common.LerpTransform(old.Transform, cur.Transform, t),
				Animation: animator.LerpSnapshot(old.Animation, cur.Animation, t),
				Rig:       cur.Rig,
			}
		}
		out.Models[mi] = ModelInstances{Model: m.Model, Instances: insts}
	}
	return out
}

func lerpEnvironment(a, b Environment, t float32) Environment {
	dir := common.LerpVec3(a.SunDirection, b.SunDirection, t)
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	return Environment{
		SunDirection:   dir,
		SunColor:       common.LerpVec3(a.SunColor, b.SunColor, t),
		EnvironmentMap: b.EnvironmentMap,
		Irradiance:     b.Irradiance,
	}
}

func lerpCamera(a, b Camera, t float32) Camera {
	return Camera{
		Position: common.LerpVec3(a.Position, b.Position, t),
		Rotation: common.SlerpShortest(a.Rotation, b.Rotation, t),
		FovY:     common.Lerp(a.FovY, b.FovY, t),
		Aspect:   common.Lerp(a.Aspect, b.Aspect, t),
		Near:     common.Lerp(a.Near, b.Near, t),
		Far:      common.Lerp(a.Far, b.Far, t),
	}
}

package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/animator"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
	"github.com/Carmen-Shannon/oxy-core/engine/snapshot"
)

// ErrClipIndex is returned when an animation graph state refers to a clip the entity does not list.
var ErrClipIndex = errors.New("engine: graph state clip out of range")

// EntityDesc describes an entity to spawn. Asset paths are requested from the registry; an
// empty path means the entity has no such asset. Graph is required for animated entities and
// its state clip indices index Clips.
type EntityDesc struct {
	Transform common.Transform

	Model    string
	Skeleton string
	Clips    []string

	Graph        *animator.Graph
	InitialState int
}

// Entity is one simulated object. It is owned by the simulation goroutine.
type Entity struct {
	ID        common.EntityID
	Transform common.Transform

	// Animator is nil for static entities.
	Animator animator.Animator

	model    *registry.Handle
	skeleton *registry.Handle
	clips    []*registry.Handle
	rig      snapshot.Rig
}

// Model returns the id of the entity's model entry, zero when it has none.
func (e *Entity) Model() registry.HandleID {
	if e.model == nil {
		return registry.HandleID{}
	}
	return e.model.ID()
}

// Rig returns the skeleton and clip entries the entity is posed from.
func (e *Entity) Rig() snapshot.Rig {
	return e.rig
}

func (e *Entity) release() {
	for _, h := range append([]*registry.Handle{e.model, e.skeleton}, e.clips...) {
		if h != nil {
			h.Release()
		}
	}
}

// World is the simulation state handed to the tick callback. It is not safe for concurrent use;
// other goroutines spawn and despawn through the Engine, which defers the change to the next tick.
type World struct {
	reg    *registry.Registry
	nextID *atomic.Uint64

	entities map[common.EntityID]*Entity
	order    []common.EntityID

	// Camera and Environment are published with every snapshot.
	Camera      snapshot.Camera
	Environment snapshot.Environment

	tick uint64
}

func newWorld(reg *registry.Registry) *World {
	return &World{
		reg:      reg,
		nextID:   &atomic.Uint64{},
		entities: make(map[common.EntityID]*Entity),
		Camera: snapshot.Camera{
			Rotation: common.IdentityTransform().Rotation,
			FovY:     1.0472,
			Aspect:   16.0 / 9.0,
			Near:     0.1,
			Far:      1000,
		},
	}
}

// Spawn creates an entity from desc and adds it immediately.
//
// Parameters:
//   - desc: the entity description
//
// Returns:
//   - common.EntityID: the new entity's id
//   - error: error if the animation graph is invalid
func (w *World) Spawn(desc EntityDesc) (common.EntityID, error) {
	ent, err := w.build(desc)
	if err != nil {
		return 0, err
	}
	w.add(ent)
	return ent.ID, nil
}

// Despawn removes an entity and releases its asset handles. Unknown ids are ignored.
func (w *World) Despawn(id common.EntityID) {
	ent, ok := w.entities[id]
	if !ok {
		return
	}
	delete(w.entities, id)
	for i, other := range w.order {
		if other == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	ent.release()
}

// Entity looks up a live entity.
func (w *World) Entity(id common.EntityID) (*Entity, bool) {
	ent, ok := w.entities[id]
	return ent, ok
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return len(w.entities)
}

// Each calls fn for every entity in spawn order.
func (w *World) Each(fn func(*Entity)) {
	for _, id := range w.order {
		fn(w.entities[id])
	}
}

// Tick returns the number of completed simulation ticks.
func (w *World) Tick() uint64 {
	return w.tick
}

// build validates desc and acquires its handles. It only touches thread-safe state, so the
// Engine may call it from any goroutine.
func (w *World) build(desc EntityDesc) (*Entity, error) {
	ent := &Entity{Transform: desc.Transform}

	if desc.Graph != nil {
		for i, st := range desc.Graph.States {
			if st.Clip < 0 || st.Clip >= len(desc.Clips) {
				return nil, fmt.Errorf("%w: state %d uses clip %d of %d", ErrClipIndex, i, st.Clip, len(desc.Clips))
			}
		}
		anim, err := animator.New(*desc.Graph, animator.WithInitialState(desc.InitialState, 0))
		if err != nil {
			return nil, fmt.Errorf("spawn: %w", err)
		}
		ent.Animator = anim
	}

	if desc.Model != "" {
		ent.model = w.reg.Request(desc.Model)
	}
	if desc.Skeleton != "" {
		ent.skeleton = w.reg.Request(desc.Skeleton)
		ent.rig.Skeleton = ent.skeleton.ID()
	}
	for _, path := range desc.Clips {
		h := w.reg.Request(path)
		ent.clips = append(ent.clips, h)
		ent.rig.Clips = append(ent.rig.Clips, h.ID())
	}

	ent.ID = common.EntityID(w.nextID.Add(1))
	return ent, nil
}

func (w *World) add(ent *Entity) {
	w.entities[ent.ID] = ent
	w.order = append(w.order, ent.ID)
}

// advance steps every animator by dt.
func (w *World) advance(dt float32) {
	for _, id := range w.order {
		if anim := w.entities[id].Animator; anim != nil {
			anim.Update(dt)
		}
	}
	w.tick++
}

// snapshot captures the world as an immutable Snapshot, grouping instances by model in order
// of first appearance.
func (w *World) snapshot() *snapshot.Snapshot {
	s := &snapshot.Snapshot{
		Environment: w.Environment,
		Camera:      w.Camera,
	}
	groups := make(map[registry.HandleID]int)
	for _, id := range w.order {
		ent := w.entities[id]
		inst := snapshot.Instance{
			Entity:    ent.ID,
			Transform: ent.Transform,
			Rig:       ent.rig,
		}
		if ent.Animator != nil {
			inst.Animation = ent.Animator.Snapshot()
		}

		model := ent.Model()
		gi, ok := groups[model]
		if !ok {
			gi = len(s.Models)
			groups[model] = gi
			s.Models = append(s.Models, snapshot.ModelInstances{Model: model})
		}
		s.Models[gi].Instances = append(s.Models[gi].Instances, inst)
	}
	return s
}

// release drops every entity's handles.
func (w *World) release() {
	for _, id := range w.order {
		w.entities[id].release()
	}
	clear(w.entities)
	w.order = nil
}

// commandBuffer defers world changes requested from outside the simulation goroutine.
type commandBuffer struct {
	mu       *sync.Mutex
	spawns   []*Entity
	despawns []common.EntityID
}

func newCommandBuffer() *commandBuffer {
	return &commandBuffer{mu: &sync.Mutex{}}
}

func (b *commandBuffer) spawn(ent *Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spawns = append(b.spawns, ent)
}

func (b *commandBuffer) despawn(id common.EntityID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.despawns = append(b.despawns, id)
}

// apply runs queued spawns, then queued despawns, and resets the buffer.
func (b *commandBuffer) apply(w *World) {
	b.mu.Lock()
	spawns, despawns := b.spawns, b.despawns
	b.spawns, b.despawns = nil, nil
	b.mu.Unlock()

	for _, ent := range spawns {
		w.add(ent)
	}
	for _, id := range despawns {
		w.Despawn(id)
	}
}

// discard releases the handles of spawns that never reached the world.
func (b *commandBuffer) discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ent := range b.spawns {
		ent.release()
	}
	b.spawns, b.despawns = nil, nil
}

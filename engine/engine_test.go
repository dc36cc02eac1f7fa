package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/animation"
	"github.com/Carmen-Shannon/oxy-core/engine/animator"
	"github.com/Carmen-Shannon/oxy-core/engine/pose"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 100 * time.Millisecond

type assetMap map[string]any

func (m assetMap) Load(_ registry.AssetKind, path string) (any, error) {
	v, ok := m[path]
	if !ok {
		return nil, errors.New("no such asset: " + path)
	}
	return v, nil
}

func testAssets(t *testing.T) assetMap {
	t.Helper()
	skel, err := animation.NewSkeleton([]animation.Bone{{Name: "root", ParentIndex: -1, Rest: common.IdentityTransform()}})
	require.NoError(t, err)
	walk := &animation.Clip{
		Name:     "walk",
		Duration: 1,
		Channels: []animation.Channel{{
			BoneIndex: 0,
			PositionKeys: []animation.VectorKeyframe{
				{Time: 0, Value: mgl32.Vec3{0, 0, 0}},
				{Time: 1, Value: mgl32.Vec3{1, 0, 0}},
			},
		}},
	}
	return assetMap{
		"hero.skel":  skel,
		"walk.clip":  walk,
		"run.clip":   walk,
		"hero.model": []byte("manifest"),
		"rock.mesh":  []byte{1, 2, 3, 4},
	}
}

func walkGraph() *animator.Graph {
	return &animator.Graph{
		States: []animator.State{
			{Clip: 0, Speed: 1, Wrap: animation.WrapClamp},
			{Clip: 1, Speed: 1, Wrap: animation.WrapRepeat},
		},
		Transitions: []animator.Transition{{To: 1, BlendTime: 0.5}},
	}
}

func newTestEngine(t *testing.T, assets assetMap, options ...EngineBuilderOption) (*engine, *common.ManualClock) {
	t.Helper()
	clock := common.NewManualClock(0)
	options = append([]EngineBuilderOption{WithClock(clock), WithLoaderBackend(assets), WithTickRate(10)}, options...)
	e, err := newEngine(options...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, clock
}

func waitReady(t *testing.T, e *engine, paths ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, p := range paths {
			id, ok := e.registry.Lookup(p)
			if !ok {
				return false
			}
			if entry, _ := e.registry.Get(id); !entry.CPUReady() {
				return false
			}
		}
		return true
	}, 5*time.Second, time.Millisecond)
}

func step(e *engine, clock *common.ManualClock) {
	clock.Advance(tick)
	e.simTick(float32(tick.Seconds()))
}

func TestRenderFramesInterpolatePoses(t *testing.T) {
	e, clock := newTestEngine(t, testAssets(t))
	id, err := e.Spawn(EntityDesc{Skeleton: "hero.skel", Clips: []string{"walk.clip", "run.clip"}, Graph: walkGraph()})
	require.NoError(t, err)
	waitReady(t, e, "hero.skel", "walk.clip")

	var last Frame
	e.SetRenderCallback(func(f Frame) { last = f })

	step(e, clock)
	for _, want := range []common.Tick{200_000, 300_000} {
		step(e, clock)
		require.Eventually(t, func() bool {
			e.renderFrame()
			times := e.poses.Times(id)
			return len(times) > 0 && times[len(times)-1] == want
		}, 5*time.Second, time.Millisecond)
	}

	clock.Advance(tick / 2)
	e.renderFrame()
	assert.InDelta(t, 0.5, last.Alpha, 1e-6)
	assert.Equal(t, common.Tick(250_000), last.Time)
	require.Contains(t, last.Poses, id)
	require.Len(t, last.Poses[id], 1)
	assert.InDelta(t, 0.25, last.Poses[id][0].Translation.X(), 1e-4)
	assert.Equal(t, 1, last.Snapshot.InstanceCount())
}

func TestRestPoseUntilClipsLoad(t *testing.T) {
	assets := testAssets(t)
	delete(assets, "walk.clip")
	e, clock := newTestEngine(t, assets)
	id, err := e.Spawn(EntityDesc{Skeleton: "hero.skel", Clips: []string{"walk.clip", "run.clip"}, Graph: walkGraph()})
	require.NoError(t, err)
	waitReady(t, e, "hero.skel")

	var last Frame
	e.SetRenderCallback(func(f Frame) { last = f })
	step(e, clock)
	e.renderFrame()

	require.Contains(t, last.Poses, id)
	assert.True(t, last.Poses[id][0].ApproxEqual(common.IdentityTransform()))
	assert.Zero(t, e.pool.Stats().Submitted, "no job without every clip loaded")
}

func TestNoFrameBeforeFirstTick(t *testing.T) {
	e, _ := newTestEngine(t, testAssets(t))
	called := false
	e.SetRenderCallback(func(Frame) { called = true })
	e.renderFrame()
	assert.False(t, called)
}

func TestSpawnValidation(t *testing.T) {
	e, _ := newTestEngine(t, testAssets(t))

	_, err := e.Spawn(EntityDesc{Clips: []string{"walk.clip"}, Graph: walkGraph()})
	assert.ErrorIs(t, err, ErrClipIndex)

	_, err = e.Spawn(EntityDesc{Graph: &animator.Graph{}})
	assert.ErrorIs(t, err, animator.ErrEmptyGraph)

	_, err = e.Spawn(EntityDesc{Clips: []string{"walk.clip", "run.clip"}, Graph: walkGraph(), InitialState: 5})
	assert.ErrorIs(t, err, animator.ErrUnknownState)
}

func TestSpawnAndDespawnAreDeferredToTheTick(t *testing.T) {
	e, clock := newTestEngine(t, testAssets(t))
	id, err := e.Spawn(EntityDesc{Model: "hero.model"})
	require.NoError(t, err)
	assert.Zero(t, e.world.Len())

	step(e, clock)
	ent, ok := e.world.Entity(id)
	require.True(t, ok)
	model, _ := e.registry.Get(ent.Model())
	assert.Equal(t, int32(1), model.RefCount)

	e.Despawn(id)
	step(e, clock)
	assert.Zero(t, e.world.Len())
	model, _ = e.registry.Get(ent.Model())
	assert.Zero(t, model.RefCount)
	assert.Equal(t, 1, e.registry.Sweep())
}

func TestSnapshotGroupsByModel(t *testing.T) {
	e, clock := newTestEngine(t, testAssets(t))
	e.SetTickCallback(func(_ float32, w *World) {
		if w.Tick() > 0 {
			return
		}
		for _, desc := range []EntityDesc{{Model: "hero.model"}, {Model: "rock.mesh"}, {Model: "hero.model"}, {}} {
			_, err := w.Spawn(desc)
			require.NoError(t, err)
		}
		w.Environment.SunDirection = mgl32.Vec3{0, -1, 0}
	})
	step(e, clock)

	pair := e.handoff.Load()
	require.NotNil(t, pair)
	snap := pair.Curr
	require.Len(t, snap.Models, 3)
	assert.Len(t, snap.Models[0].Instances, 2)
	assert.Len(t, snap.Models[1].Instances, 1)
	assert.True(t, snap.Models[2].Model.IsZero())
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, snap.Environment.SunDirection)
	assert.Equal(t, common.Tick(100_000), pair.CurrTime)
}

func TestTickCallbackDrivesTransitions(t *testing.T) {
	e, clock := newTestEngine(t, testAssets(t))
	id, err := e.Spawn(EntityDesc{Skeleton: "hero.skel", Clips: []string{"walk.clip", "run.clip"}, Graph: walkGraph()})
	require.NoError(t, err)

	var transitionErr error
	e.SetTickCallback(func(_ float32, w *World) {
		if w.Tick() != 1 {
			return
		}
		ent, ok := w.Entity(id)
		require.True(t, ok)
		transitionErr = ent.Animator.Transition(0)
	})
	step(e, clock)
	step(e, clock)
	require.NoError(t, transitionErr)

	inst := e.handoff.Load().Curr.Models[0].Instances[0]
	blend, ok := inst.Animation.(animator.BlendSnapshot)
	require.True(t, ok)
	assert.InDelta(t, 0.1, blend.ToElapsed, 1e-6)
	assert.InDelta(t, 0.2, blend.Fraction(), 1e-6)
	assert.Len(t, inst.Rig.Clips, 2)

	for range 5 {
		step(e, clock)
	}
	steady, ok := e.handoff.Load().Curr.Models[0].Instances[0].Animation.(animator.SteadySnapshot)
	require.True(t, ok)
	assert.Equal(t, 1, steady.Clip)
}

func TestSimulationPoses(t *testing.T) {
	e, clock := newTestEngine(t, testAssets(t))
	id, err := e.Spawn(EntityDesc{Skeleton: "hero.skel", Clips: []string{"walk.clip", "run.clip"}, Graph: walkGraph()})
	require.NoError(t, err)
	waitReady(t, e, "hero.skel", "walk.clip", "run.clip")

	var mu sync.Mutex
	got := map[common.EntityID][]pose.Pose{}
	e.SetSimPoseCallback(func(entity common.EntityID, p pose.Pose) {
		mu.Lock()
		defer mu.Unlock()
		got[entity] = append(got[entity], p)
	})

	require.Eventually(t, func() bool {
		step(e, clock)
		mu.Lock()
		defer mu.Unlock()
		return len(got[id]) > 0
	}, 5*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got[id][0].Joints, 1)
	assert.NotZero(t, got[id][0].Time)
}

func TestRunStopsOnContext(t *testing.T) {
	e, err := NewEngine(WithLoaderBackend(testAssets(t)), WithTickRate(100))
	require.NoError(t, err)

	var ticks, frames atomic.Int64
	e.SetTickCallback(func(float32, *World) { ticks.Add(1) })
	e.SetRenderCallback(func(Frame) { frames.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	assert.Positive(t, ticks.Load())
	assert.Positive(t, frames.Load())
	assert.ErrorIs(t, e.Run(context.Background()), ErrAlreadyRun)
	assert.False(t, e.Registry().Alive())
}

func TestRunReportsRenderPanic(t *testing.T) {
	e, err := NewEngine(WithLoaderBackend(testAssets(t)), WithTickRate(100))
	require.NoError(t, err)
	e.SetRenderCallback(func(Frame) { panic("bad frame") })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = e.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad frame")
}

func TestQuitBeforeRun(t *testing.T) {
	e, err := NewEngine(WithLoaderBackend(testAssets(t)))
	require.NoError(t, err)
	e.Quit()
	e.Quit()
	assert.NoError(t, e.Run(context.Background()))
}

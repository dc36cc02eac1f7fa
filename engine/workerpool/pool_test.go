package workerpool

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/animation"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSkeleton(t *testing.T) *animation.Skeleton {
	t.Helper()
	skel, err := animation.NewSkeleton([]animation.Bone{{Name: "root", ParentIndex: -1, Rest: common.IdentityTransform()}})
	require.NoError(t, err)
	return skel
}

// moveClip translates the root along x by `to` over one second.
func moveClip(to float32) *animation.Clip {
	return &animation.Clip{
		Duration: 1,
		Channels: []animation.Channel{{
			BoneIndex: 0,
			PositionKeys: []animation.VectorKeyframe{
				{Time: 0, Value: mgl32.Vec3{0, 0, 0}},
				{Time: 1, Value: mgl32.Vec3{to, 0, 0}},
			},
		}},
	}
}

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "result channel closed")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Result{}
}

func TestEvaluate(t *testing.T) {
	skel := testSkeleton(t)

	joints, err := Evaluate(Single{Skeleton: skel, Clip: moveClip(10), LocalTime: 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 5, joints[0].Translation.X(), 1e-5)

	joints, err = Evaluate(Blend{
		Skeleton:      skel,
		FromClip:      moveClip(10),
		ToClip:        moveClip(-10),
		FromTime:      1,
		ToTime:        1,
		BlendTime:     0.25,
		BlendDuration: 1,
	})
	require.NoError(t, err)
	// 25% of the way from +10 to -10.
	assert.InDelta(t, 5, joints[0].Translation.X(), 1e-5)

	_, err = Evaluate(Single{Clip: moveClip(1)})
	assert.ErrorIs(t, err, ErrNoSkeleton)
}

func TestSubmitDeliversStampedPoses(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.Close()
	skel := testSkeleton(t)

	require.NoError(t, p.Submit(Job{
		Entity:   9,
		Consumer: ConsumerRender,
		Time:     1000,
		Tasks: []PoseTask{
			Single{Skeleton: skel, Clip: moveClip(10), LocalTime: 0.1},
			Single{Offset: 16667, Skeleton: skel, Clip: moveClip(10), LocalTime: 0.2},
		},
	}))

	r := receive(t, p.Results(ConsumerRender))
	assert.Equal(t, common.EntityID(9), r.Entity)
	require.Len(t, r.Poses, 2)
	assert.Equal(t, common.Tick(1000), r.Poses[0].Time)
	assert.Equal(t, common.Tick(17667), r.Poses[1].Time)
	assert.InDelta(t, 2, r.Poses[1].Joints[0].Translation.X(), 1e-5)
}

func TestConsumersArePartitioned(t *testing.T) {
	p := New()
	defer p.Close()
	skel := testSkeleton(t)

	require.NoError(t, p.Submit(Job{Entity: 1, Consumer: ConsumerSimulation, Tasks: []PoseTask{Single{Skeleton: skel}}}))
	r := receive(t, p.Results(ConsumerSimulation))
	assert.Equal(t, common.EntityID(1), r.Entity)

	select {
	case r := <-p.Results(ConsumerRender):
		t.Fatalf("render consumer received %v", r)
	default:
	}
}

func TestPendingJobsCoalesce(t *testing.T) {
	p := newPool()
	skel := testSkeleton(t)

	for i := range 5 {
		require.NoError(t, p.Submit(Job{Entity: 3, Time: common.Tick(i), Tasks: []PoseTask{Single{Skeleton: skel}}}))
	}
	require.NoError(t, p.Submit(Job{Entity: 4, Tasks: []PoseTask{Single{Skeleton: skel}}}))
	require.NoError(t, p.Submit(Job{Entity: 3, Consumer: ConsumerSimulation, Tasks: []PoseTask{Single{Skeleton: skel}}}))

	st := p.Stats()
	assert.Equal(t, 3, st.Pending)
	assert.Equal(t, uint64(4), st.Superseded)
	assert.Equal(t, uint64(7), st.Submitted)

	p.start()
	p.Close()

	var render []Result
	for r := range p.Results(ConsumerRender) {
		render = append(render, r)
	}
	require.Len(t, render, 2)
	for _, r := range render {
		if r.Entity == 3 {
			assert.Equal(t, common.Tick(4), r.Poses[0].Time, "latest job wins")
		}
	}
}

func TestPanicIsContained(t *testing.T) {
	p := newPool(WithWorkers(1))
	var calls atomic.Int32
	p.eval = func(task PoseTask) ([]common.Transform, error) {
		if calls.Add(1) == 1 {
			panic("corrupt clip")
		}
		return Evaluate(task)
	}
	p.start()
	defer p.Close()
	skel := testSkeleton(t)

	require.NoError(t, p.Submit(Job{Entity: 1, Time: 100, Tasks: []PoseTask{Single{Skeleton: skel}, Single{Offset: 7, Skeleton: skel}}}))
	r := receive(t, p.Results(ConsumerRender))
	assert.Len(t, r.Poses, 1, "the panicking task is skipped")
	assert.Equal(t, common.Tick(107), r.Poses[0].Time)

	require.NoError(t, p.Submit(Job{Entity: 2, Tasks: []PoseTask{Single{Skeleton: skel}}}))
	r = receive(t, p.Results(ConsumerRender))
	assert.Len(t, r.Poses, 1, "the worker keeps serving after a panic")
	assert.Equal(t, uint64(1), p.Stats().Failed)
}

func TestCloseDrainsAndRejects(t *testing.T) {
	baseline := runtime.NumGoroutine()
	p := New(WithWorkers(4), WithResultBuffer(1))
	skel := testSkeleton(t)
	for e := range 3 {
		require.NoError(t, p.Submit(Job{Entity: common.EntityID(e), Tasks: []PoseTask{Single{Skeleton: skel}}}))
	}
	p.Close()
	p.Close()

	n := 0
	for range p.Results(ConsumerRender) {
		n++
	}
	st := p.Stats()
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), st.Completed)
	assert.Equal(t, uint64(2), st.Dropped)
	assert.ErrorIs(t, p.Submit(Job{Entity: 1}), ErrClosed)
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= baseline }, time.Second, time.Millisecond,
		"worker goroutines outlive Close")
}

func TestCloseJoinsWorkers(t *testing.T) {
	baseline := runtime.NumGoroutine()
	skel := testSkeleton(t)
	for range 10 {
		p := New(WithWorkers(8))
		require.NoError(t, p.Submit(Job{Entity: 1, Tasks: []PoseTask{Single{Skeleton: skel}}}))
		p.Close()
	}
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= baseline }, time.Second, time.Millisecond,
		"goroutines: baseline %d, now %d", baseline, runtime.NumGoroutine())
}

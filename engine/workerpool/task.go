package workerpool

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/animation"
	"github.com/Carmen-Shannon/oxy-core/engine/pose"
)

// ErrNoSkeleton is reported for a task that carries no skeleton to sample against.
var ErrNoSkeleton = errors.New("workerpool: task has no skeleton")

// Consumer partitions results so render-bound and simulation-bound poses never share a channel.
type Consumer uint8

const (
	ConsumerRender Consumer = iota
	ConsumerSimulation

	consumerCount
)

func (c Consumer) String() string {
	switch c {
	case ConsumerRender:
		return "render"
	case ConsumerSimulation:
		return "simulation"
	}
	return "invalid"
}

// PoseTask is one pose evaluation. It is exactly one of Single or Blend.
// Skeleton and clip data are shared read-only between tasks.
type PoseTask interface {
	offset() common.Tick
}

// Single samples one clip at LocalTime.
type Single struct {
	// Offset is added to the job time to stamp this task's pose.
	Offset common.Tick

	Skeleton  *animation.Skeleton
	Clip      *animation.Clip
	Wrap      animation.WrapMode
	Boundary  animation.BoundaryMode
	LocalTime float32
}

// Blend samples two clips and mixes them by BlendTime/BlendDuration.
type Blend struct {
	// Offset is added to the job time to stamp this task's pose.
	Offset common.Tick

	Skeleton *animation.Skeleton
	FromClip *animation.Clip
	ToClip   *animation.Clip

	BlendTime     float32
	BlendDuration float32

	FromTime     float32
	ToTime       float32
	FromWrap     animation.WrapMode
	ToWrap       animation.WrapMode
	FromBoundary animation.BoundaryMode
	ToBoundary   animation.BoundaryMode
}

func (t Single) offset() common.Tick { return t.Offset }
func (t Blend) offset() common.Tick  { return t.Offset }

// Job is a batch of pose tasks for one entity. Each task's pose is stamped Time plus the task's
// Offset, so a job can carry poses for several instants.
type Job struct {
	Entity   common.EntityID
	Consumer Consumer
	Time     common.Tick
	Tasks    []PoseTask
}

// Result carries the poses computed for one job, in task order minus any task that failed.
type Result struct {
	Entity common.EntityID
	Poses  []pose.Pose
}

// Evaluate runs a single pose task synchronously.
//
// Parameters:
//   - task: the task to evaluate
//
// Returns:
//   - []common.Transform: the local joint transforms
//   - error: ErrNoSkeleton if the task has no skeleton
func Evaluate(task PoseTask) ([]common.Transform, error) {
	switch t := task.(type) {
	case Single:
		if t.Skeleton == nil {
			return nil, ErrNoSkeleton
		}
		return animation.Sample(t.Skeleton, t.Clip, t.LocalTime, t.Wrap, t.Boundary), nil
	case Blend:
		if t.Skeleton == nil {
			return nil, ErrNoSkeleton
		}
		from := animation.Sample(t.Skeleton, t.FromClip, t.FromTime, t.FromWrap, t.FromBoundary)
		to := animation.Sample(t.Skeleton, t.ToClip, t.ToTime, t.ToWrap, t.ToBoundary)
		return animation.Blend(from, from, to, animation.BlendFraction(t.BlendTime, t.BlendDuration)), nil
	}
	return nil, errors.New("workerpool: unknown task type")
}

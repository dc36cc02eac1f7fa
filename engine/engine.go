// Package engine wires the registry, loader, uploader, pose worker pool, pose storage and
// snapshot handoff into a fixed-rate simulation loop and a free-running render loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/animation"
	"github.com/Carmen-Shannon/oxy-core/engine/animator"
	"github.com/Carmen-Shannon/oxy-core/engine/config"
	"github.com/Carmen-Shannon/oxy-core/engine/loader"
	"github.com/Carmen-Shannon/oxy-core/engine/pose"
	"github.com/Carmen-Shannon/oxy-core/engine/profiler"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
	"github.com/Carmen-Shannon/oxy-core/engine/snapshot"
	"github.com/Carmen-Shannon/oxy-core/engine/uploader"
	"github.com/Carmen-Shannon/oxy-core/engine/window"
	"github.com/Carmen-Shannon/oxy-core/engine/workerpool"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("engine: already run")

// Frame is what the render callback receives each render frame.
type Frame struct {
	// Snapshot is the scene interpolated to Time.
	Snapshot *snapshot.Snapshot

	// Poses holds the local joint transforms of every animated instance whose skeleton is loaded.
	// Instances without computed poses yet get their skeleton's rest pose.
	Poses map[common.EntityID][]common.Transform

	// Alpha is the interpolation fraction between the previous and current snapshots.
	Alpha float32

	// Time is the simulation time the frame shows.
	Time common.Tick

	// Delta is the wall time since the previous frame in seconds.
	Delta float32
}

// engine implements the Engine interface.
// Coordinates the simulation, render and quit goroutines.
type engine struct {
	cfg   config.Config
	clock common.Clock

	registry *registry.Registry
	loader   loader.Loader
	uploader uploader.Uploader
	pool     *workerpool.Pool
	poses    *pose.Storage
	handoff  *snapshot.Handoff
	window   window.Window
	profiler *profiler.Profiler

	loaderBackend loader.Backend
	uploadBackend uploader.Backend

	world    *World
	commands *commandBuffer

	tickCallback    func(dt float32, w *World)
	renderCallback  func(f Frame)
	simPoseCallback func(entity common.EntityID, p pose.Pose)
	callbackMu      *sync.Mutex

	// render-goroutine state
	frame        uint64
	lastJobTime  common.Tick
	lastRender   common.Tick
	lastRendered bool

	// aspect holds the float32 bits of a window aspect ratio not yet applied to the camera
	aspect atomic.Uint32

	ran       atomic.Bool
	quit      chan struct{}
	quitOnce  sync.Once
	closeOnce sync.Once
}

// Engine is the main entry point. It owns every component and runs the simulation and render loops.
type Engine interface {
	// Spawn queues an entity for the next simulation tick and requests its assets.
	//
	// Parameters:
	//   - desc: the entity description
	//
	// Returns:
	//   - common.EntityID: the id the entity will have
	//   - error: error if the description is invalid
	Spawn(desc EntityDesc) (common.EntityID, error)

	// Despawn queues the removal of an entity for the next simulation tick.
	//
	// Parameters:
	//   - id: the entity to remove
	Despawn(id common.EntityID)

	// SetTickCallback registers the function called each simulation tick, before animators advance.
	// The World may be modified freely inside the callback.
	//
	// Parameters:
	//   - callback: function receiving the tick length in seconds and the world
	SetTickCallback(callback func(dt float32, w *World))

	// SetRenderCallback registers the function called each render frame with the interpolated scene.
	//
	// Parameters:
	//   - callback: function receiving the frame
	SetRenderCallback(callback func(f Frame))

	// SetSimPoseCallback registers a consumer of simulation-side poses. While set, a pose job is
	// submitted for every animated entity each tick and finished poses are delivered on a later tick.
	//
	// Parameters:
	//   - callback: function receiving each computed pose, or nil to stop submitting
	SetSimPoseCallback(callback func(entity common.EntityID, p pose.Pose))

	// Run starts the loops and blocks until ctx is done, Quit is called, the window closes or a loop
	// fails. The render loop runs on the calling goroutine. Every component is closed before Run returns.
	//
	// Parameters:
	//   - ctx: cancelling ctx stops the engine
	//
	// Returns:
	//   - error: the failure that stopped the engine, nil on a requested stop
	Run(ctx context.Context) error

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()

	// Close quits and releases every component. Run calls it; it is only needed for an engine
	// that is never run.
	Close()

	Registry() *registry.Registry
	Loader() loader.Loader
	Uploader() uploader.Uploader
	Pool() *workerpool.Pool
	Poses() *pose.Storage
	Handoff() *snapshot.Handoff
	Window() window.Window
	Clock() common.Clock
	Config() config.Config
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options applied on top of config.Default.
// All components are started; loads begin as soon as entities are spawned.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if the configuration is invalid
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	return newEngine(options...)
}

func newEngine(options ...EngineBuilderOption) (*engine, error) {
	e := &engine{
		cfg:        config.Default(),
		clock:      common.NewMonotonicClock(),
		quit:       make(chan struct{}),
		commands:   newCommandBuffer(),
		callbackMu: &sync.Mutex{},
	}
	for _, opt := range options {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	e.registry = registry.New()
	e.uploader = uploader.NewUploader(e.registry, uploader.WithBackend(e.uploadBackend))

	loaderOptions := []loader.LoaderBuilderOption{
		loader.WithAssetRoot(e.cfg.Loader.AssetRoot),
		loader.WithWorkers(e.cfg.Loader.Workers),
		loader.WithEnqueuer(e.uploader),
	}
	if e.loaderBackend != nil {
		loaderOptions = append(loaderOptions, loader.WithBackend(e.loaderBackend))
	}
	e.loader = loader.NewLoader(e.registry, loaderOptions...)
	if e.cfg.Loader.Watch {
		if err := e.loader.Watch(e.cfg.Loader.AssetRoot); err != nil {
			common.Logger().Warn("engine: hot reload disabled", "error", err)
		}
	}

	e.pool = workerpool.New(
		workerpool.WithWorkers(e.cfg.Workers.Count),
		workerpool.WithQueueSize(e.cfg.Workers.QueueSize),
		workerpool.WithIdleTimeout(e.cfg.Workers.IdleTimeout()),
		workerpool.WithResultBuffer(e.cfg.Workers.ResultBuffer),
	)
	e.poses = pose.NewStorage(
		pose.WithCapacity(e.cfg.Pose.Capacity),
		pose.WithGraceFrames(e.cfg.Pose.GraceFrames),
	)
	e.handoff = snapshot.NewHandoff(snapshot.WithClock(e.clock))
	e.world = newWorld(e.registry)

	e.profiler = profiler.NewProfiler()
	e.profiler.AddGauge("entities_spawned", func() int { return int(e.world.nextID.Load()) })
	e.profiler.AddGauge("pool_pending", func() int { return e.pool.Stats().Pending })
	e.profiler.AddGauge("pose_entries", e.poses.Len)
	e.profiler.AddGauge("registry_entries", e.registry.Len)
	e.profiler.AddGauge("loads_pending", e.loader.Pending)
	e.profiler.AddGauge("uploads_pending", e.uploader.Pending)

	if e.window != nil {
		e.aspect.Store(math.Float32bits(e.window.Aspect()))
		e.window.SetResizeCallback(func(width, height int) {
			if width > 0 && height > 0 {
				e.aspect.Store(math.Float32bits(float32(width) / float32(height)))
			}
		})
	}

	common.Logger().Info("engine: created",
		"tick_rate", e.cfg.Engine.TickRate,
		"workers", e.pool.Workers(),
		"asset_root", e.cfg.Loader.AssetRoot)
	return e, nil
}

func (e *engine) Spawn(desc EntityDesc) (common.EntityID, error) {
	ent, err := e.world.build(desc)
	if err != nil {
		return 0, err
	}
	e.commands.spawn(ent)
	return ent.ID, nil
}

func (e *engine) Despawn(id common.EntityID) {
	e.commands.despawn(id)
}

func (e *engine) SetTickCallback(callback func(dt float32, w *World)) {
	e.callbackMu.Lock()
	defer e.callbackMu.Unlock()
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(f Frame)) {
	e.callbackMu.Lock()
	defer e.callbackMu.Unlock()
	e.renderCallback = callback
}

func (e *engine) SetSimPoseCallback(callback func(entity common.EntityID, p pose.Pose)) {
	e.callbackMu.Lock()
	defer e.callbackMu.Unlock()
	e.simPoseCallback = callback
}

func (e *engine) Run(ctx context.Context) error {
	if !e.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer e.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			e.Quit()
		case <-e.quit:
		}
		return nil
	})
	g.Go(e.handleSimulation)

	renderErr := e.handleRender()
	e.Quit()
	return errors.Join(renderErr, g.Wait())
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quit)
	})
}

// Close shuts components down in dependency order: workers first, then the loader and uploader
// that drive the registry, then the registry itself.
func (e *engine) Close() {
	e.Quit()
	e.closeOnce.Do(func() {
		e.commands.discard()
		e.world.release()
		e.pool.Close()
		e.loader.Close()
		e.uploader.Close()
		e.registry.Sweep()
		e.registry.Close()
		if e.window != nil {
			if err := e.window.Close(); err != nil {
				common.Logger().Debug("engine: window close", "error", err)
			}
		}
		common.Logger().Info("engine: stopped")
	})
}

// handleSimulation runs the fixed-rate tick loop until quit.
func (e *engine) handleSimulation() (err error) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("engine: simulation goroutine recovered from panic", "panic", r)
			err = fmt.Errorf("engine: simulation panic: %v", r)
			e.Quit()
		}
	}()

	interval := e.cfg.Engine.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := float32(interval.Seconds())
	e.simTick(dt)
	for {
		select {
		case <-e.quit:
			return nil
		case <-ticker.C:
			e.simTick(dt)
		}
	}
}

// simTick advances the world by one fixed step and publishes the resulting snapshot.
func (e *engine) simTick(dt float32) {
	e.callbackMu.Lock()
	tick, simPose := e.tickCallback, e.simPoseCallback
	e.callbackMu.Unlock()

	e.commands.apply(e.world)
	if bits := e.aspect.Swap(0); bits != 0 {
		e.world.Camera.Aspect = math.Float32frombits(bits)
	}
	e.drainSimulationPoses(simPose)

	if tick != nil {
		tick(dt, e.world)
	}
	e.world.advance(dt)

	snap := e.world.snapshot()
	now := e.clock.Now()
	if simPose != nil {
		e.submitPoses(snap, workerpool.ConsumerSimulation, now)
	}
	e.handoff.PublishAt(snap, now)
}

func (e *engine) drainSimulationPoses(deliver func(common.EntityID, pose.Pose)) {
	results := e.pool.Results(workerpool.ConsumerSimulation)
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return
			}
			if deliver == nil {
				continue
			}
			for _, p := range r.Poses {
				deliver(r.Entity, p)
			}
		default:
			return
		}
	}
}

// handleRender runs the render loop on the calling goroutine until quit or the window closes.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() (err error) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("engine: render goroutine recovered from panic", "panic", r)
			err = fmt.Errorf("engine: render panic: %v", r)
			e.Quit()
		}
	}()

	limit := e.cfg.Engine.FrameInterval()
	for {
		select {
		case <-e.quit:
			return nil
		default:
		}

		start := time.Now()
		if e.window != nil && !e.window.PollEvents() {
			common.Logger().Info("engine: window closed")
			e.Quit()
			return nil
		}

		e.renderFrame()

		if limit > 0 {
			if remaining := limit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		} else if e.window == nil {
			// without a window there is no vsync or event wait to pace the loop
			time.Sleep(time.Millisecond)
		}
	}
}

// renderFrame interpolates the latest snapshot pair, keeps render-side poses flowing and hands
// the frame to the render callback.
func (e *engine) renderFrame() {
	e.poses.BeginFrame()
	e.frame++

	now := e.clock.Now()
	var delta float32
	if e.lastRendered {
		delta = float32((now - e.lastRender).Seconds())
	}
	e.lastRender, e.lastRendered = now, true

	if pair := e.handoff.Load(); pair != nil {
		// draw one tick in the past so now falls between prev and curr
		at := now
		if lag := common.TickFromDuration(e.cfg.Engine.TickInterval()); at > lag {
			at -= lag
		} else {
			at = 0
		}
		if pair.CurrTime != e.lastJobTime {
			e.submitPoses(pair.Curr, workerpool.ConsumerRender, pair.CurrTime)
			e.lastJobTime = pair.CurrTime
		}
		e.drainRenderPoses()

		snap := pair.Interpolate(at)
		simTime := pair.SimTime(at)
		frame := Frame{
			Snapshot: snap,
			Poses:    e.framePoses(snap, simTime),
			Alpha:    pair.Alpha(at),
			Time:     simTime,
			Delta:    delta,
		}

		e.callbackMu.Lock()
		render := e.renderCallback
		e.callbackMu.Unlock()
		if render != nil {
			render(frame)
		}
	}

	if n := e.poses.Collect(); n > 0 {
		common.Logger().Debug("engine: collected stale pose buffers", "count", n)
	}
	if e.frame%uint64(e.cfg.Registry.SweepInterval) == 0 {
		e.registry.Sweep()
	}
	if e.cfg.Engine.Profiling {
		e.profiler.Tick()
	}
}

func (e *engine) drainRenderPoses() {
	results := e.pool.Results(workerpool.ConsumerRender)
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return
			}
			for _, p := range r.Poses {
				e.poses.Insert(r.Entity, p)
			}
		default:
			return
		}
	}
}

// submitPoses queues one pose job per animated instance of s whose skeleton and clips are loaded.
func (e *engine) submitPoses(s *snapshot.Snapshot, consumer workerpool.Consumer, at common.Tick) {
	for _, m := range s.Models {
		for _, inst := range m.Instances {
			task, ok := e.poseTask(inst)
			if !ok {
				continue
			}
			err := e.pool.Submit(workerpool.Job{
				Entity:   inst.Entity,
				Consumer: consumer,
				Time:     at,
				Tasks:    []workerpool.PoseTask{task},
			})
			if err != nil {
				common.Logger().Debug("engine: pose job rejected", "entity", inst.Entity, "error", err)
				return
			}
		}
	}
}

// poseTask resolves an instance's rig into a pose task. It reports false while any asset is not CPU ready.
func (e *engine) poseTask(inst snapshot.Instance) (workerpool.PoseTask, bool) {
	if inst.Animation == nil {
		return nil, false
	}
	skel, ok := registry.CPUResource[*animation.Skeleton](e.registry, inst.Rig.Skeleton)
	if !ok {
		return nil, false
	}
	clip := func(i int) (*animation.Clip, bool) {
		if i < 0 || i >= len(inst.Rig.Clips) {
			return nil, false
		}
		return registry.CPUResource[*animation.Clip](e.registry, inst.Rig.Clips[i])
	}

	switch a := inst.Animation.(type) {
	case animator.SteadySnapshot:
		c, ok := clip(a.Clip)
		if !ok {
			return nil, false
		}
		return workerpool.Single{
			Skeleton:  skel,
			Clip:      c,
			Wrap:      a.Wrap,
			Boundary:  a.Boundary,
			LocalTime: a.Elapsed,
		}, true
	case animator.BlendSnapshot:
		from, ok := clip(a.FromClip)
		if !ok {
			return nil, false
		}
		to, ok := clip(a.ToClip)
		if !ok {
			return nil, false
		}
		return workerpool.Blend{
			Skeleton:      skel,
			FromClip:      from,
			ToClip:        to,
			BlendTime:     a.ToElapsed,
			BlendDuration: a.BlendDuration,
			FromTime:      a.FromElapsed,
			ToTime:        a.ToElapsed,
			FromWrap:      a.FromWrap,
			ToWrap:        a.ToWrap,
			FromBoundary:  a.FromBoundary,
			ToBoundary:    a.ToBoundary,
		}, true
	}
	return nil, false
}

// framePoses queries pose storage for every animated instance, falling back to the rest pose.
func (e *engine) framePoses(s *snapshot.Snapshot, at common.Tick) map[common.EntityID][]common.Transform {
	out := make(map[common.EntityID][]common.Transform)
	for _, m := range s.Models {
		for _, inst := range m.Instances {
			if inst.Animation == nil {
				continue
			}
			if joints, ok := pose.Sample(e.poses.Query(inst.Entity, at), at); ok {
				out[inst.Entity] = joints
				continue
			}
			if skel, ok := registry.CPUResource[*animation.Skeleton](e.registry, inst.Rig.Skeleton); ok {
				out[inst.Entity] = skel.RestPose()
			}
		}
	}
	return out
}

func (e *engine) Registry() *registry.Registry { return e.registry }
func (e *engine) Loader() loader.Loader        { return e.loader }
func (e *engine) Uploader() uploader.Uploader  { return e.uploader }
func (e *engine) Pool() *workerpool.Pool       { return e.pool }
func (e *engine) Poses() *pose.Storage         { return e.poses }
func (e *engine) Handoff() *snapshot.Handoff   { return e.handoff }
func (e *engine) Window() window.Window        { return e.window }
func (e *engine) Clock() common.Clock          { return e.clock }
func (e *engine) Config() config.Config        { return e.cfg }

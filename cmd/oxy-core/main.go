// Command oxy-core runs the coordination core on a procedurally generated crowd of animated
// entities, optionally inside a window and with assets uploaded to a GPU.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine"
	"github.com/Carmen-Shannon/oxy-core/engine/animation"
	"github.com/Carmen-Shannon/oxy-core/engine/animator"
	"github.com/Carmen-Shannon/oxy-core/engine/config"
	"github.com/Carmen-Shannon/oxy-core/engine/uploader"
	"github.com/Carmen-Shannon/oxy-core/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML config file")
		useWindow  = flag.Bool("window", false, "open a window; closing it stops the run")
		useGPU     = flag.Bool("gpu", false, "upload assets to a headless WebGPU device")
		duration   = flag.Duration("duration", 5*time.Second, "stop after this long, 0 to run until interrupted")
		crowd      = flag.Int("entities", 64, "number of animated entities")
	)
	flag.Parse()

	if err := run(*configPath, *useWindow, *useGPU, *duration, *crowd); err != nil {
		fmt.Fprintln(os.Stderr, "oxy-core:", err)
		os.Exit(1)
	}
}

// toggle is set from the window goroutine and consumed by the next simulation tick.
var toggle atomic.Bool

func run(configPath string, useWindow, useGPU bool, duration time.Duration, crowd int) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	options := []engine.EngineBuilderOption{engine.WithConfig(cfg)}
	if useGPU {
		backend, err := uploader.NewWGPUBackend(false)
		if err != nil {
			return err
		}
		options = append(options, engine.WithUploadBackend(backend))
	}
	if useWindow {
		w, err := window.NewWindow(window.WithTitle("oxy-core"))
		if err != nil {
			return err
		}
		w.SetKeyDownCallback(func(keyCode uint32) {
			if keyCode == window.KeyT || keyCode == window.KeySpace {
				toggle.Store(true)
			}
		})
		options = append(options, engine.WithWindow(w))
	}

	e, err := engine.NewEngine(options...)
	if err != nil {
		return err
	}
	if err := populate(e, crowd); err != nil {
		e.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	return e.Run(ctx)
}

// populate registers the procedural assets and spawns the crowd.
func populate(e engine.Engine, crowd int) error {
	reg := e.Registry()

	skel, err := animation.NewSkeleton(chainBones(4))
	if err != nil {
		return err
	}
	reg.Insert("procedural/chain.skel", skel)
	reg.Insert("procedural/sway.clip", swayClip(skel, 2, 0.4))
	reg.Insert("procedural/wave.clip", swayClip(skel, 0.5, 1.2))

	ground := reg.Insert("procedural/ground.mesh", make([]byte, 64))
	if err := e.Uploader().Enqueue(ground.ID()); err != nil {
		return err
	}
	if _, err := e.Spawn(engine.EntityDesc{Transform: common.IdentityTransform(), Model: "procedural/ground.mesh"}); err != nil {
		return err
	}

	graph := &animator.Graph{
		States: []animator.State{
			{Clip: 0, Speed: 1, Wrap: animation.WrapRepeat, Boundary: animation.BoundaryLoop},
			{Clip: 1, Speed: 1.5, Wrap: animation.WrapPingPong},
		},
		Transitions: []animator.Transition{
			{To: 1, BlendTime: 0.3},
			{To: 0, BlendTime: 0.6},
		},
	}
	side := int(math.Ceil(math.Sqrt(float64(crowd))))
	for i := range crowd {
		tr := common.IdentityTransform()
		tr.Translation = mgl32.Vec3{float32(i%side) * 2, 0, float32(i/side) * 2}
		_, err := e.Spawn(engine.EntityDesc{
			Transform: tr,
			Skeleton:  "procedural/chain.skel",
			Clips:     []string{"procedural/sway.clip", "procedural/wave.clip"},
			Graph:     graph,
		})
		if err != nil {
			return err
		}
	}

	e.SetTickCallback(func(_ float32, w *engine.World) {
		// every 120 ticks, or on key press, each entity toggles between its two states
		if !toggle.Swap(false) && w.Tick()%120 != 0 {
			return
		}
		w.Each(func(ent *engine.Entity) {
			if ent.Animator == nil || ent.Animator.IsBlending() {
				return
			}
			st, ok := ent.Animator.Status().(animator.Steady)
			if !ok {
				return
			}
			if err := ent.Animator.Transition(st.State); err != nil {
				common.Logger().Debug("demo: transition refused", "entity", ent.ID, "error", err)
			}
		})
	})

	var frames uint64
	e.SetRenderCallback(func(f engine.Frame) {
		frames++
		if frames%600 == 0 {
			common.Logger().Info("demo: frame",
				"instances", f.Snapshot.InstanceCount(),
				"posed", len(f.Poses),
				"alpha", f.Alpha,
				"sim_time", f.Time.Duration())
		}
	})
	return nil
}

func chainBones(n int) []animation.Bone {
	bones := make([]animation.Bone, n)
	for i := range bones {
		rest := common.IdentityTransform()
		if i > 0 {
			rest.Translation = mgl32.Vec3{0, 1, 0}
		}
		bones[i] = animation.Bone{Name: fmt.Sprintf("link%d", i), ParentIndex: int32(i - 1), Rest: rest}
	}
	return bones
}

// swayClip rocks every bone of skel around Z with the given period and amplitude in radians.
func swayClip(skel *animation.Skeleton, period, amplitude float32) *animation.Clip {
	clip := &animation.Clip{Name: fmt.Sprintf("sway-%g", period), Duration: period}
	const samples = 8
	for b := range skel.JointCount() {
		ch := animation.Channel{BoneIndex: int32(b)}
		for k := range samples + 1 {
			t := period * float32(k) / samples
			angle := amplitude * float32(math.Sin(2*math.Pi*float64(k)/samples))
			ch.RotationKeys = append(ch.RotationKeys, animation.QuaternionKeyframe{
				Time:  t,
				Value: mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1}),
			})
		}
		clip.Channels = append(clip.Channels, ch)
	}
	return clip
}

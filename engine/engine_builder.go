package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/config"
	"github.com/Carmen-Shannon/oxy-core/engine/loader"
	"github.com/Carmen-Shannon/oxy-core/engine/uploader"
	"github.com/Carmen-Shannon/oxy-core/engine/window"
)

// EngineBuilderOption configures an engine before its subsystems are built.
// Options are applied in order, so a WithConfig followed by WithTickRate keeps the explicit tick rate.
type EngineBuilderOption func(*engine)

// WithConfig replaces the whole configuration.
//
// Parameters:
//   - cfg: the configuration, validated by NewEngine
//
// Returns:
//   - EngineBuilderOption: the option
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithProfiling turns the once-per-second profiler report on or off.
//
// Parameters:
//   - enabled: whether render frames feed the profiler
//
// Returns:
//   - EngineBuilderOption: the option
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.cfg.Engine.Profiling = enabled
	}
}

// WithTickRate sets how many simulation ticks run per second. Non-positive rates mean 60.
//
// Parameters:
//   - hz: ticks per second
//
// Returns:
//   - EngineBuilderOption: the option
func WithTickRate(hz int) EngineBuilderOption {
	return func(e *engine) {
		e.cfg.Engine.TickRate = common.CoalescePositive(60, hz)
	}
}

// WithRenderFrameLimit caps how often the render loop produces a frame.
//
// Parameters:
//   - fps: frames per second; 0 leaves the loop uncapped
//
// Returns:
//   - EngineBuilderOption: the option
func WithRenderFrameLimit(fps int) EngineBuilderOption {
	return func(e *engine) {
		e.cfg.Engine.RenderFrameLimit = max(fps, 0)
	}
}

// WithWindow sets a window whose close event ends the run and whose size drives the camera aspect.
//
// Parameters:
//   - w: an open Window, closed by the engine on shutdown
//
// Returns:
//   - EngineBuilderOption: the option
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithClock sets the clock snapshots and poses are stamped with.
//
// Parameters:
//   - c: the clock; a common.ManualClock makes runs deterministic
//
// Returns:
//   - EngineBuilderOption: the option
func WithClock(c common.Clock) EngineBuilderOption {
	return func(e *engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLoaderBackend sets where assets are read from instead of files under the asset root.
//
// Parameters:
//   - b: the loader backend
//
// Returns:
//   - EngineBuilderOption: the option
func WithLoaderBackend(b loader.Backend) EngineBuilderOption {
	return func(e *engine) {
		e.loaderBackend = b
	}
}

// WithUploadBackend sets the device resources are created on. Defaults to host memory.
//
// Parameters:
//   - b: the upload backend; the engine closes it on shutdown
//
// Returns:
//   - EngineBuilderOption: the option
func WithUploadBackend(b uploader.Backend) EngineBuilderOption {
	return func(e *engine) {
		e.uploadBackend = b
	}
}

// WithIdleTimeout overrides how long surplus pose workers stay alive without work.
//
// Parameters:
//   - d: the idle timeout
//
// Returns:
//   - EngineBuilderOption: the option
func WithIdleTimeout(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.cfg.Workers.IdleTimeoutMs = int(d / time.Millisecond)
	}
}

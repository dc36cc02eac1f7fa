// Package config holds the TOML-backed settings of an engine run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Config is the complete engine configuration.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Workers  WorkersConfig  `toml:"workers"`
	Pose     PoseConfig     `toml:"pose"`
	Registry RegistryConfig `toml:"registry"`
	Loader   LoaderConfig   `toml:"loader"`
	Log      LogConfig      `toml:"log"`
}

// EngineConfig configures the run loop.
type EngineConfig struct {
	// TickRate is the fixed simulation rate in ticks per second.
	TickRate int `toml:"tick_rate"`
	// RenderFrameLimit caps the render rate in frames per second. Zero means uncapped.
	RenderFrameLimit int `toml:"render_frame_limit"`
	// Profiling enables the periodic profiler log line.
	Profiling bool `toml:"profiling"`
}

// WorkersConfig configures the pose worker pool.
type WorkersConfig struct {
	Count         int `toml:"count"`
	QueueSize     int `toml:"queue_size"`
	IdleTimeoutMs int `toml:"idle_timeout_ms"`
	ResultBuffer  int `toml:"result_buffer"`
}

// PoseConfig configures pose storage.
type PoseConfig struct {
	Capacity    int `toml:"capacity"`
	GraceFrames int `toml:"grace_frames"`
}

// RegistryConfig configures the resource registry.
type RegistryConfig struct {
	// SweepInterval is the number of render frames between sweeps of unreferenced entries.
	SweepInterval int `toml:"sweep_interval"`
}

// LoaderConfig configures asset loading.
type LoaderConfig struct {
	Workers   int    `toml:"workers"`
	AssetRoot string `toml:"asset_root"`
	Watch     bool   `toml:"watch"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			TickRate:         60,
			RenderFrameLimit: 0,
		},
		Workers: WorkersConfig{
			Count:         4,
			QueueSize:     256,
			IdleTimeoutMs: 5000,
			ResultBuffer:  256,
		},
		Pose: PoseConfig{
			Capacity:    6,
			GraceFrames: 120,
		},
		Registry: RegistryConfig{
			SweepInterval: 60,
		},
		Loader: LoaderConfig{
			Workers:   2,
			AssetRoot: ".",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and validates the configuration file at path. Keys missing from the file keep
// their Default values.
//
// Parameters:
//   - path: the TOML file
//
// Returns:
//   - Config: the configuration
//   - error: error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a configuration from r on top of Default. Unknown keys are rejected.
//
// Parameters:
//   - r: the TOML document
//
// Returns:
//   - Config: the validated configuration
//   - error: error if decoding or validation fails
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, name, v))
		}
	}
	positive("engine.tick_rate", c.Engine.TickRate)
	positive("workers.count", c.Workers.Count)
	positive("workers.queue_size", c.Workers.QueueSize)
	positive("workers.result_buffer", c.Workers.ResultBuffer)
	positive("pose.capacity", c.Pose.Capacity)
	positive("registry.sweep_interval", c.Registry.SweepInterval)
	positive("loader.workers", c.Loader.Workers)
	if c.Engine.RenderFrameLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: engine.render_frame_limit must not be negative", ErrInvalid))
	}
	if c.Workers.IdleTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("%w: workers.idle_timeout_ms must not be negative", ErrInvalid))
	}
	if c.Pose.GraceFrames < 0 {
		errs = append(errs, fmt.Errorf("%w: pose.grace_frames must not be negative", ErrInvalid))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TickInterval is the simulation step implied by TickRate.
func (c EngineConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.TickRate)
}

// FrameInterval is the minimum render frame duration, zero when uncapped.
func (c EngineConfig) FrameInterval() time.Duration {
	if c.RenderFrameLimit <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.RenderFrameLimit)
}

// IdleTimeout converts IdleTimeoutMs.
func (c WorkersConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// SlogLevel parses Level into a slog.Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, c.Level)
	}
	return level, nil
}

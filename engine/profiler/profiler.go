package profiler

import (
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/Carmen-Shannon/oxy-core/common"
)

// Gauge samples one engine quantity, such as pending pose jobs, when stats are reported.
type Gauge struct {
	Name string
	Read func() int
}

// Stats is one reported interval.
type Stats struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
	Gauges      map[string]int
}

// Profiler tracks frame rate, memory statistics and engine gauges for performance monitoring.
// Outputs stats to the engine logger at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	gauges         []Gauge
	last           Stats
	now            func() time.Time
}

// NewProfiler creates a new Profiler with the options applied.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions to configure the Profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// AddGauge registers a gauge sampled on every report. Gauges are read on the goroutine calling Tick.
//
// Parameters:
//   - name: the log attribute name
//   - read: returns the current value
func (p *Profiler) AddGauge(name string, read func() int) {
	p.gauges = append(p.gauges, Gauge{Name: name, Read: read})
}

// Last returns the most recently reported stats.
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory and every gauge.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: live heap. TotalAlloc: cumulative, tracks churn. Sys: process footprint.
	stats := Stats{
		FPS:     float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:  float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:   float64(p.memStats.Sys) / 1024 / 1024,
		GCCount: p.memStats.NumGC,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	stats.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if gcCount := stats.GCCount; gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		stats.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > stats.MaxPauseUs {
				stats.MaxPauseUs = pause
			}
		}
	}

	attrs := []any{
		slog.String("fps", formatFloat(stats.FPS)),
		slog.String("heap_mb", formatFloat(stats.HeapMB)),
		slog.String("alloc_rate_mb_s", formatFloat(stats.AllocRateMB)),
		slog.Uint64("gc", uint64(stats.GCCount)),
		slog.Uint64("gc_last_us", stats.LastPauseUs),
		slog.Uint64("gc_max_us", stats.MaxPauseUs),
		slog.String("sys_mb", formatFloat(stats.SysMB)),
	}
	if len(p.gauges) > 0 {
		stats.Gauges = make(map[string]int, len(p.gauges))
		for _, g := range p.gauges {
			v := g.Read()
			stats.Gauges[g.Name] = v
			attrs = append(attrs, slog.Int(g.Name, v))
		}
	}
	common.Logger().Info("profiler", attrs...)

	p.last = stats
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = stats.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

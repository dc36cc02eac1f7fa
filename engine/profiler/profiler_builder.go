package profiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-core/common"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval is an option builder that sets how often stats are reported.
//
// Parameters:
//   - d: the report interval; non-positive values are ignored
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval to a profiler
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = common.CoalescePositive(p.updateInterval, d)
	}
}

// WithTimeSource is an option builder that replaces time.Now, for deterministic tests.
func WithTimeSource(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

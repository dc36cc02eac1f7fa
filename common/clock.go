package common

import (
	"sync"
	"time"
)

// Tick is a fixed-point timestamp: microseconds since a Clock's epoch.
// Pose samples and snapshot pairs are stamped with Ticks so ordering is exact across goroutines.
type Tick uint64

// TicksPerSecond is the resolution of a Tick.
const TicksPerSecond = uint64(time.Second / time.Microsecond)

// TickFromDuration converts an elapsed duration to Ticks. Negative durations clamp to zero.
func TickFromDuration(d time.Duration) Tick {
	if d <= 0 {
		return 0
	}
	return Tick(d / time.Microsecond)
}

// Duration converts a Tick back to an elapsed duration.
func (t Tick) Duration() time.Duration {
	return time.Duration(t) * time.Microsecond
}

// Seconds returns the tick as fractional seconds.
func (t Tick) Seconds() float64 {
	return float64(t) / float64(TicksPerSecond)
}

// Clock provides the current time in Ticks.
type Clock interface {
	// Now returns the number of ticks elapsed since the clock's epoch.
	//
	// Returns:
	//   - Tick: the current timestamp
	Now() Tick
}

// monotonicClock measures ticks from its creation time using the monotonic reading of time.Now.
type monotonicClock struct {
	epoch time.Time
}

// NewMonotonicClock creates a Clock whose epoch is the moment of the call.
//
// Returns:
//   - Clock: a clock backed by the runtime's monotonic time source
func NewMonotonicClock() Clock {
	return &monotonicClock{epoch: time.Now()}
}

func (c *monotonicClock) Now() Tick {
	return TickFromDuration(time.Since(c.epoch))
}

// ManualClock is a Clock advanced explicitly, used by tests and deterministic replays.
type ManualClock struct {
	mu  *sync.RWMutex
	now Tick
}

// NewManualClock creates a ManualClock starting at the given tick.
func NewManualClock(start Tick) *ManualClock {
	return &ManualClock{mu: &sync.RWMutex{}, now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() Tick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += TickFromDuration(d)
}

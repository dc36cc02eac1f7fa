package snapshot

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-core/common"
)

// Pair is the (previous, current) snapshot pair readers interpolate between. Immutable once published.
type Pair struct {
	Prev     *Snapshot
	PrevTime common.Tick
	Curr     *Snapshot
	CurrTime common.Tick
}

// Alpha returns how far now lies between PrevTime and CurrTime, clamped to [0, 1].
// A pair with no time span yields 1.
func (p *Pair) Alpha(now common.Tick) float32 {
	if p.CurrTime <= p.PrevTime {
		return 1
	}
	if now <= p.PrevTime {
		return 0
	}
	return common.Clamp01(float32(float64(now-p.PrevTime) / float64(p.CurrTime-p.PrevTime)))
}

// SimTime maps now onto the simulation timeline between PrevTime and CurrTime.
func (p *Pair) SimTime(now common.Tick) common.Tick {
	return p.PrevTime + common.Tick(float64(p.CurrTime-p.PrevTime)*float64(p.Alpha(now)))
}

// Interpolate returns the scene as seen at now, interpolated between Prev and Curr.
func (p *Pair) Interpolate(now common.Tick) *Snapshot {
	return Lerp(p.Prev, p.Curr, p.Alpha(now))
}

// Handoff passes snapshots from the single simulation writer to any number of readers.
// Each Publish builds a new Pair and swaps it in with one atomic store, so readers never
// see a pair half updated and the writer never waits on a reader.
type Handoff struct {
	pair  atomic.Pointer[Pair]
	clock common.Clock
}

// NewHandoff creates an empty Handoff with the provided options applied.
//
// Parameters:
//   - options: functional options, e.g. the clock used to stamp publishes
//
// Returns:
//   - *Handoff: the handoff; Load returns nil until the first Publish
func NewHandoff(options ...HandoffBuilderOption) *Handoff {
	h := &Handoff{clock: common.NewMonotonicClock()}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Publish makes s the current snapshot stamped with the handoff clock, demoting the previous one.
// Only one goroutine may publish.
func (h *Handoff) Publish(s *Snapshot) {
	h.PublishAt(s, h.clock.Now())
}

// PublishAt is Publish with an explicit timestamp. The first publish pairs s with itself.
func (h *Handoff) PublishAt(s *Snapshot, at common.Tick) {
	next := &Pair{Prev: s, PrevTime: at, Curr: s, CurrTime: at}
	if old := h.pair.Load(); old != nil {
		next.Prev, next.PrevTime = old.Curr, old.CurrTime
	}
	h.pair.Store(next)
}

// Load returns the latest published pair, or nil before the first Publish.
func (h *Handoff) Load() *Pair {
	return h.pair.Load()
}

// Clock returns the clock publishes are stamped with.
func (h *Handoff) Clock() common.Clock {
	return h.clock
}

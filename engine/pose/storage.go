package pose

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-core/common"
)

const (
	// DefaultCapacity is the number of samples kept per entity.
	DefaultCapacity = 6

	// DefaultGraceFrames is how many frames an entity may go unqueried before Collect drops it.
	DefaultGraceFrames = 120
)

// entry is one entity's sample buffer. times is ascending and joints holds stride transforms per sample.
type entry struct {
	times    []common.Tick
	joints   []common.Transform
	stride   int
	lastSeen uint64
}

// Storage keeps a small time-ordered window of recent poses per entity.
// Samples arrive in any order from the worker pool; Storage restores time order on insert.
type Storage struct {
	mu *sync.Mutex

	capacity    int
	graceFrames uint64
	frame       uint64

	entries map[common.EntityID]*entry
}

// NewStorage creates an empty Storage with the provided options applied.
//
// Parameters:
//   - options: functional options configuring capacity and grace window
//
// Returns:
//   - *Storage: the storage
func NewStorage(options ...StorageBuilderOption) *Storage {
	s := &Storage{
		mu:          &sync.Mutex{},
		capacity:    DefaultCapacity,
		graceFrames: DefaultGraceFrames,
		entries:     make(map[common.EntityID]*entry),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Insert stores p for entity. When the buffer is full the oldest sample is evicted first.
// A pose whose joint count differs from the stored ones replaces the whole buffer.
//
// Parameters:
//   - entity: the entity the pose belongs to
//   - p: the pose; its joints are copied
func (s *Storage) Insert(entity common.EntityID, p Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stride := len(p.Joints)
	e, ok := s.entries[entity]
	if !ok || e.stride != stride {
		lastSeen := s.frame
		if ok {
			lastSeen = e.lastSeen
		}
		e = &entry{
			times:    make([]common.Tick, 0, s.capacity),
			joints:   make([]common.Transform, 0, s.capacity*stride),
			stride:   stride,
			lastSeen: lastSeen,
		}
		s.entries[entity] = e
	}

	if len(e.times) == s.capacity {
		copy(e.times, e.times[1:])
		e.times = e.times[:len(e.times)-1]
		copy(e.joints, e.joints[stride:])
		e.joints = e.joints[:len(e.joints)-stride]
	}

	n := len(e.times)
	if n == 0 || p.Time >= e.times[n-1] {
		e.times = append(e.times, p.Time)
		e.joints = append(e.joints, p.Joints...)
		return
	}

	at := 0
	for at < n && e.times[at] <= p.Time {
		at++
	}
	e.times = slices.Insert(e.times, at, p.Time)
	e.joints = slices.Insert(e.joints, at*stride, p.Joints...)
}

// Query finds the samples around t for entity and marks the entity as seen this frame.
//
// Parameters:
//   - entity: the entity to look up
//   - t: the query time
//
// Returns:
//   - Result: Nothing if no sample exists, One if t is before the earliest or at/after the
//     latest sample, otherwise Two with the samples immediately around t
func (s *Storage) Query(entity common.EntityID, t common.Tick) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entity]
	if !ok {
		return Nothing{}
	}
	e.lastSeen = s.frame
	n := len(e.times)
	if n == 0 {
		return Nothing{}
	}

	latest := -1
	for i, ts := range e.times {
		if ts > t {
			break
		}
		latest = i
	}
	switch latest {
	case -1:
		return One{Pose: e.sample(0)}
	case n - 1:
		return One{Pose: e.sample(n - 1)}
	}
	return Two{Before: e.sample(latest), After: e.sample(latest + 1)}
}

// BeginFrame advances the frame counter used for grace-period eviction.
func (s *Storage) BeginFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame++
}

// Collect drops every entity that has not been queried or created within the grace window.
//
// Returns:
//   - int: the number of entities removed
func (s *Storage) Collect() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if s.frame-e.lastSeen > s.graceFrames {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Remove drops entity's buffer.
func (s *Storage) Remove(entity common.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entity)
}

// Len returns the number of entities with a buffer.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Times returns a copy of entity's stored timestamps, oldest first.
func (s *Storage) Times(entity common.EntityID) []common.Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entity]
	if !ok {
		return nil
	}
	return slices.Clone(e.times)
}

// Capacity returns the per-entity sample limit.
func (s *Storage) Capacity() int {
	return s.capacity
}

// sample copies sample i out of the buffer so callers never alias storage that later inserts shift.
func (e *entry) sample(i int) Pose {
	return Pose{
		Time:   e.times[i],
		Joints: slices.Clone(e.joints[i*e.stride : (i+1)*e.stride]),
	}
}

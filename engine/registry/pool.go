package registry

import "sync"

type poolSlot[T any] struct {
	value T
	used  bool
}

// Pool is an independently locked slot arena holding resolved resource payloads.
// The Registry keeps one Pool for CPU payloads and one for GPU resources so that
// registry bookkeeping never contends with payload access.
type Pool[T any] struct {
	mu    *sync.Mutex
	slots []poolSlot[T]
	free  []uint32
	count int
}

// NewPool creates an empty Pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{mu: &sync.Mutex{}}
}

// Insert stores v in a free slot and returns its index.
func (p *Pool[T]) Insert(v T) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot := p.allocLocked()
	p.slots[slot].value = v
	return slot
}

// Reserve claims a slot holding the zero value, to be filled later with Fill.
func (p *Pool[T]) Reserve() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocLocked()
}

// Fill stores v in a previously reserved slot. It reports false if the slot is not in use.
func (p *Pool[T]) Fill(slot uint32, v T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(slot) >= len(p.slots) || !p.slots[slot].used {
		return false
	}
	p.slots[slot].value = v
	return true
}

// Get returns the value stored at slot.
func (p *Pool[T]) Get(slot uint32) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(slot) >= len(p.slots) || !p.slots[slot].used {
		var zero T
		return zero, false
	}
	return p.slots[slot].value, true
}

// Remove frees slot and returns the value it held.
func (p *Pool[T]) Remove(slot uint32) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	if int(slot) >= len(p.slots) || !p.slots[slot].used {
		return zero, false
	}
	v := p.slots[slot].value
	p.slots[slot] = poolSlot[T]{}
	p.free = append(p.free, slot)
	p.count--
	return v, true
}

// Len returns the number of occupied slots.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *Pool[T]) allocLocked() uint32 {
	var slot uint32
	if n := len(p.free); n > 0 {
		slot = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		slot = uint32(len(p.slots))
		p.slots = append(p.slots, poolSlot[T]{})
	}
	p.slots[slot].used = true
	p.count++
	return slot
}

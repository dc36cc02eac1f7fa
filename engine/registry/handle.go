package registry

import (
	"fmt"
	"sync/atomic"
)

// HandleID is a non-owning, copyable lookup key for a registry entry.
// It pairs a stable slot index with a generation tag so ids that outlive their entry are detected and rejected.
// The zero value never refers to an entry.
type HandleID struct {
	index      uint32
	generation uint32
}

// Index returns the slot index of the id.
func (id HandleID) Index() uint32 {
	return id.index
}

// Generation returns the generation tag of the id.
func (id HandleID) Generation() uint32 {
	return id.generation
}

// IsZero reports whether the id is the zero value.
func (id HandleID) IsZero() bool {
	return id.generation == 0
}

func (id HandleID) String() string {
	return fmt.Sprintf("HandleID(%d:%d)", id.index, id.generation)
}

// Handle is an owning reference to a registry entry. Every live Handle accounts for one
// unit of the entry's ref count: Clone adds one, Release removes one.
// Once the owning Registry is closed, Clone and Release no longer touch ref counts.
type Handle struct {
	id       HandleID
	reg      *Registry
	released atomic.Bool
}

// ID returns the non-owning lookup key of the handle.
//
// Returns:
//   - HandleID: the id, valid for lookups for as long as the entry lives
func (h *Handle) ID() HandleID {
	if h == nil {
		return HandleID{}
	}
	return h.id
}

// Clone returns a new owning handle to the same entry and increments its ref count.
//
// Returns:
//   - *Handle: the cloned handle, or nil when h is nil
func (h *Handle) Clone() *Handle {
	if h == nil {
		return nil
	}
	h.reg.retain(h.id)
	return &Handle{id: h.id, reg: h.reg}
}

// Release drops this handle's reference. Releasing the same handle twice is a no-op.
func (h *Handle) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.reg.release(h.id)
}

// Released reports whether Release has been called on this handle.
func (h *Handle) Released() bool {
	return h != nil && h.released.Load()
}

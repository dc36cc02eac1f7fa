package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-core/common"
)

var (
	// ErrStaleHandle is returned when an id refers to a freed or reused slot.
	ErrStaleHandle = errors.New("registry: stale or unknown handle")

	// ErrInvalidTransition is returned when a collaborator reports a state change the entry is not in a position to make.
	ErrInvalidTransition = errors.New("registry: invalid state transition")
)

// RequestHook is notified whenever an entry needs a (re)load: on first request and after Evict.
// It is called without any registry lock held.
type RequestHook func(id HandleID, kind AssetKind, path string)

// record is the arena-side bookkeeping of one slot.
type record struct {
	generation uint32
	live       bool

	kind     AssetKind
	path     string
	refCount int32
	cpu      CPUState
	gpu      GPUState
}

// Registry is a generational handle table tracking the load/upload lifecycle and reference
// counts of every loadable asset. It performs no IO itself: loader and uploader collaborators
// report progress by HandleID through the Begin*/Complete*/Fail* methods.
//
// Locking: the registry lock guards bookkeeping only and is always taken before a pool lock.
type Registry struct {
	mu      *sync.Mutex
	records []record
	free    []uint32
	paths   map[string]uint32

	alive atomic.Bool

	cpu *Pool[any]
	gpu *Pool[any]

	hookMu      *sync.RWMutex
	onRequest   RequestHook
	gpuReleaser func(resource any)
}

// New creates an empty Registry with the provided options applied.
//
// Parameters:
//   - options: functional options configuring hooks and initial capacity
//
// Returns:
//   - *Registry: the registry, alive until Close
func New(options ...RegistryBuilderOption) *Registry {
	r := &Registry{
		mu:     &sync.Mutex{},
		hookMu: &sync.RWMutex{},
		paths:  make(map[string]uint32),
		cpu:    NewPool[any](),
		gpu:    NewPool[any](),
	}
	r.alive.Store(true)
	for _, opt := range options {
		opt(r)
	}
	return r
}

// SetRequestHook installs the hook notified when entries need loading.
// Collaborators constructed after the registry (the loader) register themselves here.
func (r *Registry) SetRequestHook(hook RequestHook) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.onRequest = hook
}

// SetGPUReleaser installs the function used to free device resources when entries are evicted.
func (r *Registry) SetGPUReleaser(release func(resource any)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.gpuReleaser = release
}

// Request returns an owning handle for path. A tracked path yields a handle to the existing
// entry with its ref count incremented; an untracked path allocates a fresh Absent/Absent entry
// with a ref count of one and notifies the request hook.
//
// Parameters:
//   - path: the asset path, used as the deduplication key
//
// Returns:
//   - *Handle: an owning handle to the entry
func (r *Registry) Request(path string) *Handle {
	r.mu.Lock()
	if index, ok := r.paths[path]; ok {
		rec := &r.records[index]
		rec.refCount++
		id := HandleID{index: index, generation: rec.generation}
		r.mu.Unlock()
		return &Handle{id: id, reg: r}
	}
	kind := KindForPath(path)
	id := r.allocLocked(kind, path)
	r.mu.Unlock()

	common.Logger().Debug("registry: new entry", "id", id, "kind", kind, "path", path)
	r.notify(id, kind, path)
	return &Handle{id: id, reg: r}
}

// Insert tracks path with an in-memory payload that is immediately CPUReady, for procedural
// assets that never touch the loader. If path is already tracked and not yet ready, the payload
// completes it; an existing ready payload is kept.
//
// Parameters:
//   - path: the asset path, used as the deduplication key
//   - payload: the decoded CPU-side payload
//
// Returns:
//   - *Handle: an owning handle to the entry
func (r *Registry) Insert(path string, payload any) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id HandleID
	if index, ok := r.paths[path]; ok {
		rec := &r.records[index]
		rec.refCount++
		id = HandleID{index: index, generation: rec.generation}
	} else {
		id = r.allocLocked(KindForPath(path), path)
	}

	rec := &r.records[id.index]
	if rec.cpu.Phase != CPUReady {
		rec.cpu = CPUState{Phase: CPUReady, Slot: r.cpu.Insert(payload)}
	}
	return &Handle{id: id, reg: r}
}

// Get returns a snapshot of the entry referenced by id.
//
// Parameters:
//   - id: the lookup key
//
// Returns:
//   - Entry: the entry snapshot
//   - bool: false if id is stale or unknown
func (r *Registry) Get(id HandleID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok {
		return Entry{}, false
	}
	return Entry{
		ID:       id,
		Kind:     rec.kind,
		Path:     rec.path,
		RefCount: rec.refCount,
		CPU:      rec.cpu,
		GPU:      rec.gpu,
	}, true
}

// Inspect returns a snapshot of the entry owned by h.
func (r *Registry) Inspect(h *Handle) (Entry, bool) {
	return r.Get(h.ID())
}

// Lookup returns the id tracked for path without taking a reference.
func (r *Registry) Lookup(path string) (HandleID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	index, ok := r.paths[path]
	if !ok {
		return HandleID{}, false
	}
	return HandleID{index: index, generation: r.records[index].generation}, true
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// BeginLoad moves an entry from CPUAbsent to CPULoading.
func (r *Registry) BeginLoad(id HandleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok {
		return ErrStaleHandle
	}
	if rec.cpu.Phase != CPUAbsent {
		return fmt.Errorf("%w: cpu %s -> loading", ErrInvalidTransition, rec.cpu.Phase)
	}
	rec.cpu = CPUState{Phase: CPULoading}
	return nil
}

// CompleteLoad stores payload in the CPU pool and moves the entry from CPULoading to CPUReady.
func (r *Registry) CompleteLoad(id HandleID, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok {
		return ErrStaleHandle
	}
	if rec.cpu.Phase != CPULoading {
		return fmt.Errorf("%w: cpu %s -> ready", ErrInvalidTransition, rec.cpu.Phase)
	}
	rec.cpu = CPUState{Phase: CPUReady, Slot: r.cpu.Insert(payload)}
	return nil
}

// FailLoad moves an entry from CPULoading to the terminal CPUFailed state, recording cause.
func (r *Registry) FailLoad(id HandleID, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok {
		return ErrStaleHandle
	}
	if rec.cpu.Phase != CPULoading {
		return fmt.Errorf("%w: cpu %s -> failed", ErrInvalidTransition, rec.cpu.Phase)
	}
	rec.cpu = CPUState{Phase: CPUFailed, Err: cause}
	return nil
}

// QueueUpload moves an entry from GPUAbsent to GPUQueued.
func (r *Registry) QueueUpload(id HandleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok {
		return ErrStaleHandle
	}
	if rec.gpu.Phase != GPUAbsent {
		return fmt.Errorf("%w: gpu %s -> queued", ErrInvalidTransition, rec.gpu.Phase)
	}
	rec.gpu = GPUState{Phase: GPUQueued}
	return nil
}

// BeginUpload reserves a GPU pool slot, moves the entry from GPUQueued to GPUUploading and
// returns the CPU payload to upload. The CPU side must be ready.
//
// Parameters:
//   - id: the entry to upload
//
// Returns:
//   - any: the CPU payload
//   - error: ErrStaleHandle or ErrInvalidTransition
func (r *Registry) BeginUpload(id HandleID) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok {
		return nil, ErrStaleHandle
	}
	if rec.gpu.Phase != GPUQueued {
		return nil, fmt.Errorf("%w: gpu %s -> uploading", ErrInvalidTransition, rec.gpu.Phase)
	}
	if rec.cpu.Phase != CPUReady {
		return nil, fmt.Errorf("%w: upload requires cpu ready, have %s", ErrInvalidTransition, rec.cpu.Phase)
	}
	payload, ok := r.cpu.Get(rec.cpu.Slot)
	if !ok {
		return nil, fmt.Errorf("%w: cpu slot %d empty", ErrInvalidTransition, rec.cpu.Slot)
	}
	rec.gpu = GPUState{Phase: GPUUploading, Slot: r.gpu.Reserve()}
	return payload, nil
}

// CompleteUpload fills the reserved GPU slot with resource and moves the entry to GPUReady.
// If the entry went stale meanwhile, resource is handed to the GPU releaser.
func (r *Registry) CompleteUpload(id HandleID, resource any) error {
	r.mu.Lock()
	rec, ok := r.lookupLocked(id)
	if !ok || rec.gpu.Phase != GPUUploading {
		var err error = ErrStaleHandle
		if ok {
			err = fmt.Errorf("%w: gpu %s -> ready", ErrInvalidTransition, rec.gpu.Phase)
		}
		r.mu.Unlock()
		r.releaseGPU([]any{resource})
		return err
	}
	r.gpu.Fill(rec.gpu.Slot, resource)
	rec.gpu.Phase = GPUReady
	r.mu.Unlock()
	return nil
}

// FailUpload moves a queued or uploading entry to the terminal GPUFailed state, recording cause.
func (r *Registry) FailUpload(id HandleID, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok {
		return ErrStaleHandle
	}
	switch rec.gpu.Phase {
	case GPUUploading:
		r.gpu.Remove(rec.gpu.Slot)
	case GPUQueued:
	default:
		return fmt.Errorf("%w: gpu %s -> failed", ErrInvalidTransition, rec.gpu.Phase)
	}
	rec.gpu = GPUState{Phase: GPUFailed, Err: cause}
	return nil
}

// Evict drops the payloads of a live entry and resets it to Absent/Absent, keeping its handles
// and ref count. The request hook is notified so the asset gets loaded again.
//
// Parameters:
//   - id: the entry to evict
//
// Returns:
//   - error: ErrStaleHandle if id does not refer to a live entry
func (r *Registry) Evict(id HandleID) error {
	r.mu.Lock()
	rec, ok := r.lookupLocked(id)
	if !ok {
		r.mu.Unlock()
		return ErrStaleHandle
	}
	released := r.dropPayloadsLocked(rec, nil)
	kind, path := rec.kind, rec.path
	r.mu.Unlock()

	r.releaseGPU(released)
	r.notify(id, kind, path)
	return nil
}

// Sweep reclaims every entry whose ref count has dropped to zero: payloads are removed from both
// pools, device resources are handed to the GPU releaser, the path is forgotten and the slot
// generation is bumped so outstanding ids go stale.
//
// Returns:
//   - int: the number of reclaimed entries
func (r *Registry) Sweep() int {
	r.mu.Lock()
	var released []any
	reclaimed := 0
	for index := range r.records {
		rec := &r.records[index]
		if !rec.live || rec.refCount > 0 {
			continue
		}
		released = r.dropPayloadsLocked(rec, released)
		delete(r.paths, rec.path)
		*rec = record{generation: rec.generation + 1}
		r.free = append(r.free, uint32(index))
		reclaimed++
	}
	r.mu.Unlock()

	r.releaseGPU(released)
	if reclaimed > 0 {
		common.Logger().Debug("registry: swept entries", "count", reclaimed)
	}
	return reclaimed
}

// Close marks the registry as torn down. Handles issued earlier stay valid as values, but
// their Clone and Release no longer modify ref counts.
func (r *Registry) Close() {
	r.alive.Store(false)
}

// Alive reports whether Close has not been called yet.
func (r *Registry) Alive() bool {
	return r.alive.Load()
}

// CPUResource resolves id to its CPU payload typed as T.
//
// Parameters:
//   - r: the registry
//   - id: the entry to resolve
//
// Returns:
//   - T: the payload
//   - bool: false if the entry is stale, not CPUReady, or holds a payload of another type
func CPUResource[T any](r *Registry, id HandleID) (T, bool) {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok || rec.cpu.Phase != CPUReady {
		return zero, false
	}
	v, ok := r.cpu.Get(rec.cpu.Slot)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// GPUResource resolves id to its device resource typed as T.
//
// Parameters:
//   - r: the registry
//   - id: the entry to resolve
//
// Returns:
//   - T: the resource
//   - bool: false if the entry is stale, not GPUReady, or holds a resource of another type
func GPUResource[T any](r *Registry, id HandleID) (T, bool) {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lookupLocked(id)
	if !ok || rec.gpu.Phase != GPUReady {
		return zero, false
	}
	v, ok := r.gpu.Get(rec.gpu.Slot)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

func (r *Registry) retain(id HandleID) {
	if !r.alive.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.lookupLocked(id); ok {
		rec.refCount++
	}
}

func (r *Registry) release(id HandleID) {
	if !r.alive.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.lookupLocked(id); ok && rec.refCount > 0 {
		rec.refCount--
	}
}

func (r *Registry) allocLocked(kind AssetKind, path string) HandleID {
	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		index = uint32(len(r.records))
		r.records = append(r.records, record{})
	}

	rec := &r.records[index]
	if rec.generation == 0 {
		rec.generation = 1
	}
	rec.live = true
	rec.kind = kind
	rec.path = path
	rec.refCount = 1
	r.paths[path] = index
	return HandleID{index: index, generation: rec.generation}
}

func (r *Registry) lookupLocked(id HandleID) (*record, bool) {
	if id.IsZero() || int(id.index) >= len(r.records) {
		return nil, false
	}
	rec := &r.records[id.index]
	if !rec.live || rec.generation != id.generation {
		return nil, false
	}
	return rec, true
}

// dropPayloadsLocked removes the entry's pool payloads and resets both states to absent.
// Removed GPU resources are appended to released for the caller to free outside the lock.
func (r *Registry) dropPayloadsLocked(rec *record, released []any) []any {
	if rec.cpu.Phase == CPUReady {
		r.cpu.Remove(rec.cpu.Slot)
	}
	switch rec.gpu.Phase {
	case GPUReady:
		if res, ok := r.gpu.Remove(rec.gpu.Slot); ok && res != nil {
			released = append(released, res)
		}
	case GPUUploading:
		r.gpu.Remove(rec.gpu.Slot)
	}
	rec.cpu = CPUState{}
	rec.gpu = GPUState{}
	return released
}

func (r *Registry) notify(id HandleID, kind AssetKind, path string) {
	r.hookMu.RLock()
	hook := r.onRequest
	r.hookMu.RUnlock()
	if hook != nil {
		hook(id, kind, path)
	}
}

func (r *Registry) releaseGPU(resources []any) {
	if len(resources) == 0 {
		return
	}
	r.hookMu.RLock()
	release := r.gpuReleaser
	r.hookMu.RUnlock()
	if release == nil {
		return
	}
	for _, res := range resources {
		if res != nil {
			release(res)
		}
	}
}

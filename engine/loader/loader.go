// Package loader is the IO collaborator of the resource registry: it reads and decodes requested
// assets on background workers and reports progress back by handle id.
package loader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
)

// Enqueuer accepts loaded GPU-bound assets for upload.
type Enqueuer interface {
	Enqueue(id registry.HandleID) error
}

type request struct {
	id   registry.HandleID
	kind registry.AssetKind
	path string
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu   *sync.Mutex
	cond *sync.Cond

	reg      *registry.Registry
	backend  Backend
	uploader Enqueuer
	workers  int
	root     string

	queue    []request
	inflight map[registry.HandleID]bool
	deferred map[registry.HandleID]request
	closed   bool
	wg       sync.WaitGroup

	watch *watcher
}

// Loader defines the public-facing interface of the asset loader.
//
// A Loader registers itself as the registry's request hook. Every newly requested (or evicted)
// entry is queued; a worker moves it to CPULoading, loads it through the Backend and completes
// or fails the load. GPU-bound kinds are then handed to the Enqueuer. Loads of the same entry
// never overlap: a request that arrives while the entry is loading runs after that load ends.
type Loader interface {
	// Enqueue queues a load for the entry. It never blocks and is what the registry calls on request.
	//
	// Parameters:
	//   - id: the registry entry to load
	//   - kind: the asset kind, selecting the decoder
	//   - path: the asset path
	Enqueue(id registry.HandleID, kind registry.AssetKind, path string)

	// Watch starts watching dir for changes. A write to a tracked asset evicts its registry entry,
	// which queues a reload.
	//
	// Parameters:
	//   - dir: the directory to watch, typically the asset root
	//
	// Returns:
	//   - error: error if the watcher could not be created or the directory added
	Watch(dir string) error

	// Pending returns the number of queued and running loads.
	//
	// Returns:
	//   - int: the number of loads not yet finished
	Pending() int

	// Close stops the watcher and the workers. Queued loads that have not started are dropped
	// and their entries stay CPUAbsent. Running loads finish first.
	Close()
}

var _ Loader = &loader{}

// NewLoader creates a Loader for reg with the options applied, installs it as reg's request hook and starts its workers.
//
// Parameters:
//   - reg: the registry whose entries this loader drives
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the running loader
func NewLoader(reg *registry.Registry, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:       &sync.Mutex{},
		reg:      reg,
		workers:  2,
		root:     ".",
		inflight: make(map[registry.HandleID]bool),
		deferred: make(map[registry.HandleID]request),
	}
	l.cond = sync.NewCond(l.mu)
	for _, option := range options {
		option(l)
	}
	if l.backend == nil {
		l.backend = NewFileBackend(l.root)
	}

	reg.SetRequestHook(l.Enqueue)
	l.wg.Add(l.workers)
	for range l.workers {
		go l.work()
	}
	common.Logger().Info("loader: started", "workers", l.workers, "root", l.root)
	return l
}

func (l *loader) Enqueue(id registry.HandleID, kind registry.AssetKind, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue = append(l.queue, request{id: id, kind: kind, path: path})
	l.cond.Signal()
}

func (l *loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) + len(l.inflight) + len(l.deferred)
}

func (l *loader) Watch(dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("loader: closed")
	}
	if l.watch == nil {
		w, err := newWatcher(l.reg, l.root)
		if err != nil {
			return err
		}
		l.watch = w
	}
	return l.watch.add(dir)
}

func (l *loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	dropped := len(l.queue) + len(l.deferred)
	l.queue = nil
	clear(l.deferred)
	w := l.watch
	l.cond.Broadcast()
	l.mu.Unlock()

	l.reg.SetRequestHook(nil)
	if w != nil {
		w.close()
	}
	l.wg.Wait()
	common.Logger().Info("loader: closed", "dropped", dropped)
}

func (l *loader) work() {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.closed {
			l.mu.Unlock()
			return
		}
		req := l.queue[0]
		l.queue = l.queue[1:]
		if l.inflight[req.id] {
			l.deferred[req.id] = req
			l.mu.Unlock()
			continue
		}
		l.inflight[req.id] = true
		l.mu.Unlock()

		l.load(req)

		l.mu.Lock()
		delete(l.inflight, req.id)
		if next, ok := l.deferred[req.id]; ok {
			delete(l.deferred, req.id)
			l.queue = append(l.queue, next)
			l.cond.Signal()
		}
		l.mu.Unlock()
	}
}

func (l *loader) load(req request) {
	log := common.Logger().With("id", req.id, "path", req.path)
	if err := l.reg.BeginLoad(req.id); err != nil {
		log.Debug("loader: skipping load", "error", err)
		return
	}

	payload, err := l.decode(req)
	if err != nil {
		log.Warn("loader: load failed", "error", err)
		if ferr := l.reg.FailLoad(req.id, err); ferr != nil {
			log.Debug("loader: discarding failure", "error", ferr)
		}
		return
	}
	if err := l.reg.CompleteLoad(req.id, payload); err != nil {
		log.Debug("loader: discarding stale load", "error", err)
		return
	}
	log.Debug("loader: loaded", "kind", req.kind)

	if req.kind.GPUBound() && l.uploader != nil {
		if err := l.uploader.Enqueue(req.id); err != nil {
			log.Warn("loader: upload not queued", "error", err)
		}
	}
}

// decode runs the backend with panics converted into load failures.
func (l *loader) decode(req request) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("loader: recovered panic in backend", "path", req.path, "panic", r)
			payload, err = nil, fmt.Errorf("loader: backend panic: %v", r)
		}
	}()
	return l.backend.Load(req.kind, req.path)
}

// Package uploader moves CPU-ready assets into device resources on behalf of the resource registry.
package uploader

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("uploader: closed")

// uploader is the implementation of the Uploader interface.
type uploader struct {
	reg     *registry.Registry
	backend Backend

	queueSize int
	queue     chan registry.HandleID
	quit      chan struct{}
	done      chan struct{}
	once      sync.Once

	// held for reading by Enqueue until its id is in the queue, so Close drains every accepted id
	mu     *sync.RWMutex
	closed bool

	uploaded atomic.Uint64
	failed   atomic.Uint64
}

// Uploader defines the public-facing interface of the upload collaborator.
//
// Enqueue moves an entry to GPUQueued and hands it to a single upload goroutine, which reserves
// a GPU slot with BeginUpload, creates the resource through the Backend and reports
// CompleteUpload or FailUpload. The uploader also frees device resources evicted by the registry.
type Uploader interface {
	// Enqueue queues the upload of a CPU-ready entry. It blocks only while the queue is full.
	//
	// Parameters:
	//   - id: the registry entry to upload
	//
	// Returns:
	//   - error: ErrClosed, or the registry's error if the entry cannot be queued
	Enqueue(id registry.HandleID) error

	// Release frees a device resource. It is installed as the registry's GPU releaser.
	//
	// Parameters:
	//   - resource: a resource created by the backend
	Release(resource any)

	// Pending returns the number of queued uploads.
	//
	// Returns:
	//   - int: uploads waiting for the upload goroutine
	Pending() int

	// Stats returns the number of finished and failed uploads.
	//
	// Returns:
	//   - uint64: completed uploads
	//   - uint64: failed uploads
	Stats() (uint64, uint64)

	// Close stops the upload goroutine, fails queued uploads with ErrClosed and closes the backend.
	Close()
}

var _ Uploader = &uploader{}

// NewUploader creates an Uploader for reg with the options applied, installs it as reg's GPU
// releaser and starts the upload goroutine. Without WithBackend a MemoryBackend is used.
//
// Parameters:
//   - reg: the registry whose entries this uploader drives
//   - options: a variadic list of UploaderBuilderOption functions to configure the Uploader
//
// Returns:
//   - Uploader: the running uploader
func NewUploader(reg *registry.Registry, options ...UploaderBuilderOption) Uploader {
	u := &uploader{
		reg:       reg,
		queueSize: 64,
		mu:        &sync.RWMutex{},
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, option := range options {
		option(u)
	}
	if u.backend == nil {
		u.backend = NewMemoryBackend()
	}
	u.queue = make(chan registry.HandleID, u.queueSize)

	reg.SetGPUReleaser(u.Release)
	go u.run()
	common.Logger().Info("uploader: started", "queue", u.queueSize)
	return u
}

func (u *uploader) Enqueue(id registry.HandleID) error {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return ErrClosed
	}
	if err := u.reg.QueueUpload(id); err != nil {
		return err
	}
	u.queue <- id
	return nil
}

func (u *uploader) Release(resource any) {
	u.backend.Release(resource)
}

func (u *uploader) Pending() int {
	return len(u.queue)
}

func (u *uploader) Stats() (uint64, uint64) {
	return u.uploaded.Load(), u.failed.Load()
}

func (u *uploader) Close() {
	u.once.Do(func() {
		u.mu.Lock()
		u.closed = true
		u.mu.Unlock()
		close(u.quit)
		<-u.done

		dropped := 0
		for {
			select {
			case id := <-u.queue:
				u.fail(id, ErrClosed)
				dropped++
				continue
			default:
			}
			break
		}
		u.backend.Close()
		common.Logger().Info("uploader: closed", "dropped", dropped)
	})
}

func (u *uploader) run() {
	defer close(u.done)
	for {
		select {
		case <-u.quit:
			return
		default:
		}
		select {
		case <-u.quit:
			return
		case id := <-u.queue:
			u.upload(id)
		}
	}
}

func (u *uploader) upload(id registry.HandleID) {
	entry, ok := u.reg.Get(id)
	if !ok {
		return
	}
	log := common.Logger().With("id", id, "path", entry.Path)

	payload, err := u.reg.BeginUpload(id)
	if err != nil {
		log.Debug("uploader: skipping upload", "error", err)
		if errors.Is(err, registry.ErrInvalidTransition) {
			u.fail(id, err)
		}
		return
	}

	resource, err := u.create(entry.Kind, entry.Path, payload)
	if err != nil {
		log.Warn("uploader: upload failed", "error", err)
		u.fail(id, err)
		return
	}
	if err := u.reg.CompleteUpload(id, resource); err != nil {
		log.Debug("uploader: discarding stale upload", "error", err)
		return
	}
	u.uploaded.Add(1)
	log.Debug("uploader: uploaded", "kind", entry.Kind)
}

// create runs the backend with panics converted into upload failures.
func (u *uploader) create(kind registry.AssetKind, label string, payload any) (resource any, err error) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("uploader: recovered panic in backend", "path", label, "panic", r)
			resource, err = nil, fmt.Errorf("uploader: backend panic: %v", r)
		}
	}()
	return u.backend.Upload(kind, label, payload)
}

func (u *uploader) fail(id registry.HandleID, cause error) {
	if err := u.reg.FailUpload(id, cause); err == nil {
		u.failed.Add(1)
	}
}

package uploader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-core/engine/registry"
)

// ErrUnsupportedPayload is returned when a backend is handed a CPU payload it cannot upload.
var ErrUnsupportedPayload = errors.New("uploader: unsupported payload")

// Backend defines the generic interface for creating and freeing device resources.
type Backend interface {
	// Upload creates a device resource holding payload.
	//
	// Parameters:
	//   - kind: the asset kind, selecting the resource usage
	//   - label: a debug label, the asset path
	//   - payload: the CPU payload of the entry
	//
	// Returns:
	//   - any: the device resource stored in the registry's GPU pool
	//   - error: error if the payload cannot be uploaded
	Upload(kind registry.AssetKind, label string, payload any) (any, error)

	// Release frees a resource previously returned by Upload. Unknown resources are ignored.
	Release(resource any)

	// Close frees every resource still alive and the device itself.
	Close()
}

// MemoryResource is the resource type produced by the in-memory backend.
type MemoryResource struct {
	Label string
	Kind  registry.AssetKind
	Data  []byte
}

// MemoryBackend keeps uploaded resources in host memory. It is used when no GPU is requested
// and in tests.
type MemoryBackend struct {
	mu   *sync.Mutex
	live map[*MemoryResource]struct{}
}

var _ Backend = &MemoryBackend{}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{mu: &sync.Mutex{}, live: make(map[*MemoryResource]struct{})}
}

func (b *MemoryBackend) Upload(kind registry.AssetKind, label string, payload any) (any, error) {
	data, err := payloadBytes(payload)
	if err != nil {
		return nil, err
	}
	res := &MemoryResource{Label: label, Kind: kind, Data: append([]byte(nil), data...)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.live == nil {
		return nil, ErrClosed
	}
	b.live[res] = struct{}{}
	return res, nil
}

func (b *MemoryBackend) Release(resource any) {
	res, ok := resource.(*MemoryResource)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.live, res)
}

func (b *MemoryBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live = nil
}

// Live returns the number of resources uploaded and not yet released.
func (b *MemoryBackend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

func payloadBytes(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayload, payload)
	}
}

package uploader

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-core/engine/registry"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBackend uploads payloads into device buffers on a headless WebGPU device.
type wgpuBackend struct {
	mu       *sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	live     map[*wgpu.Buffer]struct{}
}

var _ Backend = &wgpuBackend{}

// NewWGPUBackend requests an adapter and device without a surface and returns a Backend that
// uploads every payload into a buffer. Meshes get vertex usage, everything else storage usage.
//
// Parameters:
//   - forceFallbackAdapter: request the software fallback adapter
//
// Returns:
//   - Backend: the device-backed backend
//   - error: error if no adapter or device is available
func NewWGPUBackend(forceFallbackAdapter bool) (Backend, error) {
	instance := wgpu.CreateInstance(nil)
	a, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Upload Device",
	})
	if err != nil {
		a.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	return &wgpuBackend{
		mu:       &sync.Mutex{},
		instance: instance,
		adapter:  a,
		device:   d,
		queue:    d.GetQueue(),
		live:     make(map[*wgpu.Buffer]struct{}),
	}, nil
}

func (b *wgpuBackend) Upload(kind registry.AssetKind, label string, payload any) (any, error) {
	data, err := payloadBytes(payload)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty %s", ErrUnsupportedPayload, kind)
	}
	// buffer writes must be a multiple of four bytes
	if pad := len(data) % 4; pad != 0 {
		data = append(append(make([]byte, 0, len(data)+4-pad), data...), make([]byte, 4-pad)...)
	}

	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	if kind == registry.KindMesh {
		usage = wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.live == nil {
		return nil, ErrClosed
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label + " Buffer",
		Size:             uint64(len(data)),
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	if err := b.queue.WriteBuffer(buf, 0, data); err != nil {
		buf.Release()
		return nil, fmt.Errorf("write %s: %w", label, err)
	}
	b.live[buf] = struct{}{}
	return buf, nil
}

func (b *wgpuBackend) Release(resource any) {
	buf, ok := resource.(*wgpu.Buffer)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.live[buf]; !ok {
		return
	}
	delete(b.live, buf)
	buf.Release()
}

func (b *wgpuBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.live == nil {
		return
	}
	for buf := range b.live {
		buf.Release()
	}
	b.live = nil
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
}

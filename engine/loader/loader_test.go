package loader

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-core/engine/animation"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second

type fakeBackend struct {
	mu      *sync.Mutex
	data    map[string]any
	fail    map[string]error
	panics  map[string]bool
	calls   map[string]int
	release chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		mu:     &sync.Mutex{},
		data:   make(map[string]any),
		fail:   make(map[string]error),
		panics: make(map[string]bool),
		calls:  make(map[string]int),
	}
}

func (b *fakeBackend) Load(kind registry.AssetKind, path string) (any, error) {
	b.mu.Lock()
	b.calls[path]++
	gate := b.release
	payload, err, boom := b.data[path], b.fail[path], b.panics[path]
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if boom {
		panic("decoder exploded")
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *fakeBackend) callCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

type fakeEnqueuer struct {
	mu  *sync.Mutex
	ids []registry.HandleID
}

func (e *fakeEnqueuer) Enqueue(id registry.HandleID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, id)
	return nil
}

func (e *fakeEnqueuer) queued() []registry.HandleID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]registry.HandleID(nil), e.ids...)
}

func phaseOf(reg *registry.Registry, id registry.HandleID) registry.CPUPhase {
	e, _ := reg.Get(id)
	return e.CPU.Phase
}

func TestRequestIsLoaded(t *testing.T) {
	reg := registry.New()
	backend := newFakeBackend()
	backend.data["walk.clip"] = &animation.Clip{Name: "walk"}
	l := NewLoader(reg, WithBackend(backend))
	defer l.Close()

	h := reg.Request("walk.clip")
	require.Eventually(t, func() bool { return phaseOf(reg, h.ID()) == registry.CPUReady }, waitFor, time.Millisecond)

	clip, ok := registry.CPUResource[*animation.Clip](reg, h.ID())
	require.True(t, ok)
	assert.Equal(t, "walk", clip.Name)
	assert.Zero(t, l.Pending())

	reg.Request("walk.clip")
	assert.Equal(t, 1, backend.callCount("walk.clip"), "tracked paths are not reloaded")
}

func TestFailuresAreTerminal(t *testing.T) {
	reg := registry.New()
	backend := newFakeBackend()
	cause := errors.New("bad magic")
	backend.fail["broken.skel"] = cause
	backend.panics["evil.skel"] = true
	l := NewLoader(reg, WithBackend(backend), WithWorkers(1))
	defer l.Close()

	broken := reg.Request("broken.skel")
	evil := reg.Request("evil.skel")

	require.Eventually(t, func() bool {
		return phaseOf(reg, broken.ID()) == registry.CPUFailed && phaseOf(reg, evil.ID()) == registry.CPUFailed
	}, waitFor, time.Millisecond)

	e, _ := reg.Get(broken.ID())
	assert.ErrorIs(t, e.CPU.Err, cause)

	backend.mu.Lock()
	backend.data["ok.clip"] = &animation.Clip{}
	backend.mu.Unlock()
	ok := reg.Request("ok.clip")
	require.Eventually(t, func() bool { return phaseOf(reg, ok.ID()) == registry.CPUReady }, waitFor, time.Millisecond, "workers survive a panicking backend")
}

func TestGPUBoundKindsAreForwarded(t *testing.T) {
	reg := registry.New()
	backend := newFakeBackend()
	backend.data["rock.mesh"] = []byte{1, 2}
	backend.data["rock.skel"] = &animation.Skeleton{}
	up := &fakeEnqueuer{mu: &sync.Mutex{}}
	l := NewLoader(reg, WithBackend(backend), WithEnqueuer(up))
	defer l.Close()

	mesh := reg.Request("rock.mesh")
	skel := reg.Request("rock.skel")
	require.Eventually(t, func() bool {
		return phaseOf(reg, mesh.ID()) == registry.CPUReady && phaseOf(reg, skel.ID()) == registry.CPUReady
	}, waitFor, time.Millisecond)

	assert.Equal(t, []registry.HandleID{mesh.ID()}, up.queued())
}

func TestEvictDuringLoadReloads(t *testing.T) {
	reg := registry.New()
	backend := newFakeBackend()
	backend.data["tex.png"] = []byte("old")
	gate := make(chan struct{})
	backend.release = gate
	l := NewLoader(reg, WithBackend(backend), WithWorkers(2))
	defer l.Close()

	h := reg.Request("tex.png")
	require.Eventually(t, func() bool { return backend.callCount("tex.png") == 1 }, waitFor, time.Millisecond)

	backend.mu.Lock()
	backend.data["tex.png"] = []byte("new")
	backend.mu.Unlock()
	require.NoError(t, reg.Evict(h.ID()))

	close(gate)
	require.Eventually(t, func() bool {
		v, ok := registry.CPUResource[[]byte](reg, h.ID())
		return ok && string(v) == "new"
	}, waitFor, time.Millisecond)
	assert.Equal(t, 2, backend.callCount("tex.png"))
}

func TestCloseStopsLoading(t *testing.T) {
	reg := registry.New()
	backend := newFakeBackend()
	l := NewLoader(reg, WithBackend(backend))
	l.Close()
	l.Close()

	h := reg.Request("late.clip")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, registry.CPUAbsent, phaseOf(reg, h.ID()))
	assert.Error(t, l.Watch(t.TempDir()))
}

func TestFileBackend(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hero.skel"), []byte("[[bones]]\nname = \"root\"\nparent = -1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "hero.model"), []byte("skeleton = \"hero.skel\"\nclips = [\"idle.clip\"]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "hero.mesh"), []byte{0xde, 0xad}, 0o644))

	b := NewFileBackend(root)

	v, err := b.Load(registry.KindSkeleton, "hero.skel")
	require.NoError(t, err)
	skel, ok := v.(*animation.Skeleton)
	require.True(t, ok)
	assert.Equal(t, 1, skel.JointCount())

	v, err = b.Load(registry.KindModel, "hero.model")
	require.NoError(t, err)
	assert.Equal(t, &ModelManifest{Skeleton: "hero.skel", Clips: []string{"idle.clip"}}, v)

	v, err = b.Load(registry.KindMesh, "hero.mesh")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, v)

	_, err = b.Load(registry.KindMesh, "../etc/passwd")
	assert.ErrorIs(t, err, ErrPathOutsideRoot)

	_, err = b.Load(registry.KindMesh, "missing.mesh")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchReloadsChangedFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "leaf.png")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	reg := registry.New()
	l := NewLoader(reg, WithAssetRoot(root))
	defer l.Close()
	require.NoError(t, l.Watch(root))

	h := reg.Request("leaf.png")
	require.Eventually(t, func() bool {
		v, ok := registry.CPUResource[[]byte](reg, h.ID())
		return ok && string(v) == "v1"
	}, waitFor, time.Millisecond)

	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))
	require.Eventually(t, func() bool {
		v, ok := registry.CPUResource[[]byte](reg, h.ID())
		return ok && string(v) == "v2"
	}, waitFor, 5*time.Millisecond)
}

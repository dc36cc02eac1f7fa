package registry

// CPUPhase is the host-side load progress of an entry.
type CPUPhase uint8

const (
	// CPUAbsent means no load has started.
	CPUAbsent CPUPhase = iota
	// CPULoading means an IO collaborator is reading/decoding the asset.
	CPULoading
	// CPUReady means the decoded payload lives in the CPU pool at CPUState.Slot.
	CPUReady
	// CPUFailed is terminal: the load failed and CPUState.Err holds the cause.
	CPUFailed
)

func (p CPUPhase) String() string {
	switch p {
	case CPUAbsent:
		return "absent"
	case CPULoading:
		return "loading"
	case CPUReady:
		return "ready"
	case CPUFailed:
		return "failed"
	}
	return "invalid"
}

// GPUPhase is the device-side upload progress of an entry.
type GPUPhase uint8

const (
	// GPUAbsent means no upload was requested.
	GPUAbsent GPUPhase = iota
	// GPUQueued means the entry waits in the upload queue.
	GPUQueued
	// GPUUploading means an upload is in flight into the reserved GPU pool slot.
	GPUUploading
	// GPUReady means the device resource lives in the GPU pool at GPUState.Slot.
	GPUReady
	// GPUFailed is terminal: the upload failed and GPUState.Err holds the cause.
	GPUFailed
)

func (p GPUPhase) String() string {
	switch p {
	case GPUAbsent:
		return "absent"
	case GPUQueued:
		return "queued"
	case GPUUploading:
		return "uploading"
	case GPUReady:
		return "ready"
	case GPUFailed:
		return "failed"
	}
	return "invalid"
}

// CPUState is the tagged CPU state of an entry. Slot is only meaningful in CPUReady, Err only in CPUFailed.
type CPUState struct {
	Phase CPUPhase
	Slot  uint32
	Err   error
}

// GPUState is the tagged GPU state of an entry. Slot is meaningful in GPUUploading and GPUReady, Err only in GPUFailed.
type GPUState struct {
	Phase GPUPhase
	Slot  uint32
	Err   error
}

// Entry is a read-only snapshot of a registry record.
type Entry struct {
	// ID is the lookup key of the record.
	ID HandleID

	// Kind is the asset category inferred from the path.
	Kind AssetKind

	// Path is the asset path the record was requested with.
	Path string

	// RefCount is the number of live owning handles.
	RefCount int32

	// CPU is the host-side load state.
	CPU CPUState

	// GPU is the device-side upload state.
	GPU GPUState
}

// CPUReady reports whether the CPU payload can be resolved.
func (e Entry) CPUReady() bool { return e.CPU.Phase == CPUReady }

// GPUReady reports whether the GPU resource can be resolved.
func (e Entry) GPUReady() bool { return e.GPU.Phase == GPUReady }

// Failed reports whether either side reached a terminal failure, in which case the
// renderer should substitute a fallback asset instead of waiting.
func (e Entry) Failed() bool {
	return e.CPU.Phase == CPUFailed || e.GPU.Phase == GPUFailed
}

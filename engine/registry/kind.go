package registry

import (
	"path/filepath"
	"strings"
)

// AssetKind identifies the category of a loadable asset tracked by the Registry.
type AssetKind uint8

const (
	// KindUnknown is used for paths whose extension is not recognised.
	KindUnknown AssetKind = iota
	// KindModel is a model manifest referencing meshes, materials and a skeleton.
	KindModel
	// KindMesh is vertex/index data bound for the GPU.
	KindMesh
	// KindMaterial is a material description bound for the GPU.
	KindMaterial
	// KindSkeleton is a joint hierarchy consumed by pose evaluation on the CPU.
	KindSkeleton
	// KindClip is an animation clip consumed by pose evaluation on the CPU.
	KindClip
	// KindTexture is compressed or raw image data bound for the GPU.
	KindTexture
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindModel:    "model",
	KindMesh:     "mesh",
	KindMaterial: "material",
	KindSkeleton: "skeleton",
	KindClip:     "clip",
	KindTexture:  "texture",
}

func (k AssetKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// GPUBound reports whether assets of this kind need an upload after loading.
func (k AssetKind) GPUBound() bool {
	switch k {
	case KindMesh, KindMaterial, KindTexture:
		return true
	}
	return false
}

var extensionKinds = map[string]AssetKind{
	".model":    KindModel,
	".gltf":     KindModel,
	".glb":      KindModel,
	".mesh":     KindMesh,
	".mat":      KindMaterial,
	".material": KindMaterial,
	".skel":     KindSkeleton,
	".skeleton": KindSkeleton,
	".clip":     KindClip,
	".anim":     KindClip,
	".ktx2":     KindTexture,
	".dds":      KindTexture,
	".png":      KindTexture,
	".jpg":      KindTexture,
	".jpeg":     KindTexture,
}

// KindForPath infers the asset kind from the file extension of path.
//
// Parameters:
//   - path: the asset path
//
// Returns:
//   - AssetKind: the inferred kind, or KindUnknown
func KindForPath(path string) AssetKind {
	return extensionKinds[strings.ToLower(filepath.Ext(path))]
}

package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-core/engine/animation"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
	"github.com/pelletier/go-toml/v2"
)

// ErrPathOutsideRoot is returned for asset paths that would resolve outside the asset root.
var ErrPathOutsideRoot = errors.New("loader: path escapes asset root")

// Backend defines the generic interface for reading and decoding one asset.
// Implementations must be safe for concurrent use by the loader's workers.
type Backend interface {
	// Load reads the asset at path and decodes it according to kind.
	//
	// Parameters:
	//   - kind: the asset kind inferred from the path
	//   - path: the asset path as requested from the registry
	//
	// Returns:
	//   - any: the CPU payload stored in the registry
	//   - error: error if reading or decoding fails
	Load(kind registry.AssetKind, path string) (any, error)
}

// ModelManifest is the decoded payload of a model asset: the paths of the assets it is built from.
type ModelManifest struct {
	Skeleton  string   `toml:"skeleton"`
	Clips     []string `toml:"clips"`
	Meshes    []string `toml:"meshes"`
	Materials []string `toml:"materials"`
}

// fileBackend reads assets from files under an asset root.
type fileBackend struct {
	root string
}

var _ Backend = &fileBackend{}

// NewFileBackend creates a Backend reading files under root.
// Skeletons and clips decode to *animation.Skeleton and *animation.Clip, model manifests to
// *ModelManifest, and every other kind is returned as raw bytes for the uploader.
//
// Parameters:
//   - root: the asset root directory
//
// Returns:
//   - Backend: the file backend
func NewFileBackend(root string) Backend {
	return &fileBackend{root: root}
}

func (b *fileBackend) Load(kind registry.AssetKind, path string) (any, error) {
	if !filepath.IsLocal(path) {
		return nil, fmt.Errorf("%w: %s", ErrPathOutsideRoot, path)
	}
	data, err := os.ReadFile(filepath.Join(b.root, path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(kind, bytes.NewReader(data))
}

// Decode turns asset bytes into the payload stored for kind.
//
// Parameters:
//   - kind: the asset kind
//   - r: the asset contents
//
// Returns:
//   - any: *animation.Skeleton, *animation.Clip, *ModelManifest or []byte
//   - error: error if decoding fails
func Decode(kind registry.AssetKind, r io.Reader) (any, error) {
	switch kind {
	case registry.KindSkeleton:
		return animation.DecodeSkeleton(r)
	case registry.KindClip:
		return animation.DecodeClip(r)
	case registry.KindModel:
		var m ModelManifest
		if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&m); err != nil {
			return nil, fmt.Errorf("decode model manifest: %w", err)
		}
		return &m, nil
	default:
		return io.ReadAll(r)
	}
}

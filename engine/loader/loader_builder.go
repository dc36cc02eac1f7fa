package loader

import "github.com/Carmen-Shannon/oxy-core/common"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithBackend is an option builder that sets the Backend used to read assets.
//
// Parameters:
//   - b: the backend
//
// Returns:
//   - LoaderBuilderOption: a function that applies the backend option to a loader
func WithBackend(b Backend) LoaderBuilderOption {
	return func(l *loader) {
		l.backend = b
	}
}

// WithAssetRoot is an option builder that sets the directory asset paths are relative to.
// Unless WithBackend is also given, a file backend over root is used.
//
// Parameters:
//   - root: the asset root directory
//
// Returns:
//   - LoaderBuilderOption: a function that applies the asset root to a loader
func WithAssetRoot(root string) LoaderBuilderOption {
	return func(l *loader) {
		l.root = common.Coalesce(root, l.root)
	}
}

// WithWorkers is an option builder that sets the number of concurrent loads.
//
// Parameters:
//   - n: the worker count; values below 1 are ignored
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker count to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = common.CoalescePositive(l.workers, n)
	}
}

// WithEnqueuer is an option builder that sets where loaded GPU-bound assets are sent for upload.
//
// Parameters:
//   - e: the upload queue
//
// Returns:
//   - LoaderBuilderOption: a function that applies the enqueuer to a loader
func WithEnqueuer(e Enqueuer) LoaderBuilderOption {
	return func(l *loader) {
		l.uploader = e
	}
}

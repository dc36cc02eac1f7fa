package registry

// RegistryBuilderOption is a functional option for configuring a Registry via New.
type RegistryBuilderOption func(*Registry)

// WithRequestHook is an option builder that sets the hook notified when entries need loading.
//
// Parameters:
//   - hook: the function called with the id, kind and path of each entry needing a load
//
// Returns:
//   - RegistryBuilderOption: a function that applies the hook to a registry
func WithRequestHook(hook RequestHook) RegistryBuilderOption {
	return func(r *Registry) {
		r.onRequest = hook
	}
}

// WithGPUReleaser is an option builder that sets the function freeing device resources on eviction.
//
// Parameters:
//   - release: called once for every evicted GPU resource, outside all registry locks
//
// Returns:
//   - RegistryBuilderOption: a function that applies the releaser to a registry
func WithGPUReleaser(release func(resource any)) RegistryBuilderOption {
	return func(r *Registry) {
		r.gpuReleaser = release
	}
}

// WithCapacity is an option builder that pre-allocates bookkeeping for n entries.
//
// Parameters:
//   - n: the expected number of tracked assets
//
// Returns:
//   - RegistryBuilderOption: a function that applies the capacity to a registry
func WithCapacity(n int) RegistryBuilderOption {
	return func(r *Registry) {
		if n <= 0 {
			return
		}
		r.records = make([]record, 0, n)
		r.paths = make(map[string]uint32, n)
	}
}

package pose

// StorageBuilderOption is a functional option for configuring a Storage via NewStorage.
type StorageBuilderOption func(*Storage)

// WithCapacity is an option builder that sets the number of samples kept per entity.
//
// Parameters:
//   - capacity: the sample limit; values below 1 are ignored
//
// Returns:
//   - StorageBuilderOption: a function that applies the capacity to a storage
func WithCapacity(capacity int) StorageBuilderOption {
	return func(s *Storage) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithGraceFrames is an option builder that sets how many frames an unqueried entity survives Collect.
//
// Parameters:
//   - frames: the grace window in frames
//
// Returns:
//   - StorageBuilderOption: a function that applies the grace window to a storage
func WithGraceFrames(frames int) StorageBuilderOption {
	return func(s *Storage) {
		if frames >= 0 {
			s.graceFrames = uint64(frames)
		}
	}
}

package uploader

import "github.com/Carmen-Shannon/oxy-core/common"

// UploaderBuilderOption is a functional option for configuring an Uploader via NewUploader.
type UploaderBuilderOption func(*uploader)

// WithBackend is an option builder that sets the Backend device resources are created with.
//
// Parameters:
//   - b: the backend; the uploader takes ownership and closes it
//
// Returns:
//   - UploaderBuilderOption: a function that applies the backend option to an uploader
func WithBackend(b Backend) UploaderBuilderOption {
	return func(u *uploader) {
		u.backend = b
	}
}

// WithQueueSize is an option builder that sets how many uploads may wait before Enqueue blocks.
//
// Parameters:
//   - n: the queue capacity; values below 1 are ignored
//
// Returns:
//   - UploaderBuilderOption: a function that applies the queue size to an uploader
func WithQueueSize(n int) UploaderBuilderOption {
	return func(u *uploader) {
		u.queueSize = common.CoalescePositive(u.queueSize, n)
	}
}

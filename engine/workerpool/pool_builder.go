package workerpool

import "time"

// PoolBuilderOption is a functional option for configuring a Pool via New.
type PoolBuilderOption func(*Pool)

// WithWorkers is an option builder that sets the maximum number of concurrently running tasks.
// Values below 1 keep the default of GOMAXPROCS.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - PoolBuilderOption: a function that applies the worker count to a pool
func WithWorkers(n int) PoolBuilderOption {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithQueueSize is an option builder that sets the capacity of the underlying worker queue.
//
// Parameters:
//   - n: the queue capacity
//
// Returns:
//   - PoolBuilderOption: a function that applies the queue size to a pool
func WithQueueSize(n int) PoolBuilderOption {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithIdleTimeout is an option builder that sets how long an idle worker lingers before exiting.
//
// Parameters:
//   - d: the idle timeout
//
// Returns:
//   - PoolBuilderOption: a function that applies the idle timeout to a pool
func WithIdleTimeout(d time.Duration) PoolBuilderOption {
	return func(p *Pool) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

// WithResultBuffer is an option builder that sets the buffer size of each result channel.
// Results that find their channel full are dropped and counted.
//
// Parameters:
//   - n: the channel buffer size
//
// Returns:
//   - PoolBuilderOption: a function that applies the buffer size to a pool
func WithResultBuffer(n int) PoolBuilderOption {
	return func(p *Pool) {
		if n > 0 {
			p.resultBuffer = n
		}
	}
}

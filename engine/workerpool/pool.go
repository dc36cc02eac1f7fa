// Package workerpool evaluates animation pose jobs on a fixed set of workers and delivers
// the results on per-consumer channels.
package workerpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/pose"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("workerpool: pool closed")

const (
	defaultQueueSize    = 256
	defaultIdleTimeout  = time.Second
	defaultResultBuffer = 1024
)

type jobKey struct {
	consumer Consumer
	entity   common.EntityID
}

// Stats is a point-in-time view of the pool's counters.
type Stats struct {
	// Pending is the number of coalesced jobs waiting for the dispatcher.
	Pending int

	Submitted  uint64
	Superseded uint64
	Completed  uint64
	Dropped    uint64
	Failed     uint64
}

// Pool runs pose jobs on an automation worker pool.
//
// Submit never blocks: jobs land in a pending set keyed by (consumer, entity), where a newer
// job for the same key replaces one that has not been dispatched yet. A single dispatcher
// goroutine moves pending jobs onto the bounded worker queue and is the only goroutine that
// ever waits on it. Results arrive on Results(consumer) in completion order.
type Pool struct {
	mu      *sync.Mutex
	pending map[jobKey]Job
	order   []jobKey
	closed  bool
	eval    func(PoseTask) ([]common.Transform, error)

	workers      worker.DynamicWorkerPool
	workerCount  int
	queueSize    int
	idleTimeout  time.Duration
	resultBuffer int

	results  [consumerCount]chan Result
	wake     chan struct{}
	quit     chan struct{}
	stopped  chan struct{}
	inflight sync.WaitGroup
	once     sync.Once
	taskID   atomic.Int64

	submitted, superseded, completed, dropped, failed atomic.Uint64
}

// New creates a Pool with the provided options applied and starts its dispatcher.
//
// Parameters:
//   - options: functional options configuring worker count, queue size and result buffering
//
// Returns:
//   - *Pool: the running pool
func New(options ...PoolBuilderOption) *Pool {
	p := newPool(options...)
	p.start()
	return p
}

func newPool(options ...PoolBuilderOption) *Pool {
	p := &Pool{
		mu:           &sync.Mutex{},
		pending:      make(map[jobKey]Job),
		eval:         Evaluate,
		workerCount:  runtime.GOMAXPROCS(0),
		queueSize:    defaultQueueSize,
		idleTimeout:  defaultIdleTimeout,
		resultBuffer: defaultResultBuffer,
		wake:         make(chan struct{}, 1),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range options {
		opt(p)
	}
	for i := range p.results {
		p.results[i] = make(chan Result, p.resultBuffer)
	}
	return p
}

func (p *Pool) start() {
	p.workers = worker.NewDynamicWorkerPool(p.workerCount, p.queueSize, p.idleTimeout)
	go p.dispatch()
	common.Logger().Info("workerpool: started", "workers", p.workerCount, "queue", p.queueSize)
}

// Submit queues job without blocking. A pending job for the same consumer and entity is replaced.
//
// Parameters:
//   - job: the job to run
//
// Returns:
//   - error: ErrClosed after Close
func (p *Pool) Submit(job Job) error {
	key := jobKey{consumer: job.Consumer, entity: job.Entity}
	if job.Consumer >= consumerCount {
		return fmt.Errorf("workerpool: unknown consumer %d", job.Consumer)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if _, ok := p.pending[key]; ok {
		p.superseded.Add(1)
	} else {
		p.order = append(p.order, key)
	}
	p.pending[key] = job
	p.mu.Unlock()

	p.submitted.Add(1)
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Results returns the channel carrying results for consumer. It is closed by Close.
func (p *Pool) Results(consumer Consumer) <-chan Result {
	return p.results[consumer]
}

// Workers returns the maximum number of concurrently running tasks.
func (p *Pool) Workers() int {
	return p.workerCount
}

// Stats returns the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	pending := len(p.order)
	p.mu.Unlock()
	return Stats{
		Pending:    pending,
		Submitted:  p.submitted.Load(),
		Superseded: p.superseded.Load(),
		Completed:  p.completed.Load(),
		Dropped:    p.dropped.Load(),
		Failed:     p.failed.Load(),
	}
}

// Close stops accepting jobs, dispatches everything still pending, waits for every running
// job to finish, joins the worker goroutines and then closes the result channels. Calling Close
// more than once is safe.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		close(p.quit)
		<-p.stopped
		p.inflight.Wait()
		p.retire()
		for _, ch := range p.results {
			close(ch)
		}
		common.Logger().Info("workerpool: closed", "completed", p.completed.Load(), "dropped", p.dropped.Load())
	})
}

func (p *Pool) dispatch() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.quit:
			p.flush()
			return
		}
	}
}

// flush hands every pending job to the workers, oldest key first.
func (p *Pool) flush() {
	p.mu.Lock()
	order := p.order
	jobs := make([]Job, 0, len(order))
	for _, key := range order {
		jobs = append(jobs, p.pending[key])
		delete(p.pending, key)
	}
	p.order = nil
	p.mu.Unlock()

	for _, job := range jobs {
		p.inflight.Add(1)
		p.workers.SubmitTask(worker.Task{
			ID: int(p.taskID.Add(1)),
			Do: func() (any, error) {
				defer p.inflight.Done()
				p.run(job)
				return nil, nil
			},
		})
	}
}

// retire ends every worker goroutine and returns once all of them have exited their task loop.
// An automation worker only leaves its loop on its own stop id, and a worker handed another
// worker's id drops it, so Stop alone does not join them. Instead each worker takes exactly one
// exit task, which ends the goroutine running it.
func (p *Pool) retire() {
	var exited sync.WaitGroup
	exited.Add(p.workerCount)
	for range p.workerCount {
		p.workers.SubmitTask(worker.Task{
			ID: int(p.taskID.Add(1)),
			Do: func() (any, error) {
				exited.Done()
				runtime.Goexit()
				return nil, nil
			},
		})
	}
	exited.Wait()
	p.workers.Stop()
}

func (p *Pool) run(job Job) {
	res := Result{Entity: job.Entity, Poses: make([]pose.Pose, 0, len(job.Tasks))}
	for i, task := range job.Tasks {
		joints, err := p.evaluate(task)
		if err != nil {
			p.failed.Add(1)
			common.Logger().Warn("workerpool: pose task failed", "entity", job.Entity, "task", i, "error", err)
			continue
		}
		res.Poses = append(res.Poses, pose.Pose{Time: job.Time + task.offset(), Joints: joints})
	}

	select {
	case p.results[job.Consumer] <- res:
		p.completed.Add(1)
	default:
		p.dropped.Add(1)
		common.Logger().Warn("workerpool: result channel full, dropping result", "entity", job.Entity, "consumer", job.Consumer)
	}
}

// evaluate contains panics raised while sampling so the worker keeps serving tasks.
func (p *Pool) evaluate(task PoseTask) (joints []common.Transform, err error) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("workerpool: recovered panic in pose task", "panic", r)
			joints, err = nil, fmt.Errorf("workerpool: panic: %v", r)
		}
	}()
	return p.eval(task)
}

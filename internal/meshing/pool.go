package meshing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abuklea/voxelito/internal/world"
)

// Job is a meshing request for one chunk. Data is a private copy of the
// chunk's material array; the worker never shares memory with the store.
type Job struct {
	Coord world.ChunkCoord
	Data  []uint8
	Dims  [3]int
}

// JobResult is the worker's response for one chunk. On success Mesh holds
// the geometry; on failure Err is set and Mesh is empty.
type JobResult struct {
	Coord    world.ChunkCoord
	Mesh     Result
	Duration time.Duration
	Err      error
}

// Pool runs mesh generation on background workers reached only via
// message passing. There is no cancellation of individual jobs: a request
// for a since-removed chunk still runs to completion and its result is
// simply discarded by the caller.
type Pool struct {
	jobs    chan Job
	results chan JobResult
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a mesh worker pool with the given number of workers and
// job queue capacity.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:    make(chan Job, queueSize),
		results: make(chan JobResult, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues a mesh job. Returns false if the queue is full.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Results returns the channel delivering finished jobs. Results may
// complete out of order relative to submission.
func (p *Pool) Results() <-chan JobResult {
	return p.results
}

// QueueLen returns the number of jobs waiting in the queue.
func (p *Pool) QueueLen() int {
	return len(p.jobs)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			res := runJob(job)
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// runJob meshes one chunk, converting a worker panic into an error so a
// single bad job cannot take the pool down.
func runJob(job Job) (res JobResult) {
	res.Coord = job.Coord
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Mesh = Result{}
			res.Err = fmt.Errorf("mesh worker panic for chunk (%d,%d,%d): %v",
				job.Coord.X, job.Coord.Y, job.Coord.Z, r)
		}
	}()
	if len(job.Data) != job.Dims[0]*job.Dims[1]*job.Dims[2] {
		res.Err = fmt.Errorf("chunk data length %d does not match dims %v", len(job.Data), job.Dims)
		return res
	}
	res.Mesh = Mesh(job.Data, job.Dims)
	return res
}

// Shutdown stops the workers and waits for them to exit.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

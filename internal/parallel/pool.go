// Package parallel provides a small worker pool used to split large
// pixel-conversion jobs into row chunks that run concurrently.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// MaxWorkers caps the pool size. Pixel conversion is memory-bandwidth
// bound, so more workers than this stop paying off.
const MaxWorkers = 8

// WorkerPool runs row-chunk jobs on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue
// drains, which keeps the pool balanced when chunk costs are uneven.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int

	// queues holds per-worker work queues. A worker prefers its own
	// queue and falls back to stealing.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to exit.
	wg sync.WaitGroup

	// running reports whether the pool still accepts work.
	running atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers <= 0, min(GOMAXPROCS, MaxWorkers) is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	mine := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(mine)
			return

		case job := <-mine:
			if job != nil {
				job()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				select {
				case <-p.done:
					p.drain(mine)
					return
				case job := <-mine:
					if job != nil {
						job()
					}
				}
			}
		}
	}
}

// drain executes whatever is left in a queue before the worker exits.
func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case job := <-queue:
			if job != nil {
				job()
			}
		default:
			return
		}
	}
}

// steal takes one job from another worker's queue, or returns nil.
func (p *WorkerPool) steal(myID int) func() {
	for i := 0; i < p.workers; i++ {
		if i == myID {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// ExecuteAll distributes jobs round-robin across workers and blocks until
// every job has finished. If the pool is closed this is a no-op.
func (p *WorkerPool) ExecuteAll(jobs []func()) {
	if len(jobs) == 0 || !p.running.Load() {
		return
	}

	var pending sync.WaitGroup
	pending.Add(len(jobs))

	for i, fn := range jobs {
		job := fn
		wrapped := func() {
			defer pending.Done()
			job()
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			pending.Done()
		}
	}

	pending.Wait()
}

// Close stops the pool, letting queued jobs finish first.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// Chunk is a half-open range [Start, End) assigned to one worker.
type Chunk struct {
	Start int
	End   int
}

// Split divides n items into at most parts contiguous chunks. Remainder
// items go to the leading chunks so sizes differ by at most one. Returns
// a single chunk when n < parts.
func Split(n, parts int) []Chunk {
	if n <= 0 {
		return nil
	}
	if parts <= 1 || n <= parts {
		return []Chunk{{Start: 0, End: n}}
	}

	base := n / parts
	rem := n % parts

	chunks := make([]Chunk, 0, parts)
	pos := 0
	for i := 0; i < parts; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks = append(chunks, Chunk{Start: pos, End: pos + size})
		pos += size
	}
	return chunks
}

// Package parallel shards per-lane kernel work across CPU cores. The GPU
// runs culling and traversal one invocation per lane; on the CPU the pool
// plays that role, and waiting for ExecuteAll or For is the barrier.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs work items on a fixed set of goroutines. Each worker owns
// a queue and steals from the others when its own runs dry, which keeps
// cores busy when some lanes (deep traversals, dense meshlet blocks) run
// longer than others.
//
// Safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
}

// NewWorkerPool starts a pool. Workers of 0 or less means GOMAXPROCS.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return
		case work := <-myQueue:
			if work != nil {
				work()
			}
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				select {
				case <-p.done:
					p.drainQueue(myQueue)
					return
				case work := <-myQueue:
					if work != nil {
						work()
					}
				}
			}
		}
	}
}

func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll runs every item and returns when the last one finishes. On a
// closed pool the items run on the calling goroutine instead.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}
	if !p.running.Load() {
		for _, fn := range work {
			fn()
		}
		return
	}

	var completion sync.WaitGroup
	completion.Add(len(work))
	for i, fn := range work {
		wrapped := func() {
			defer completion.Done()
			fn()
		}
		select {
		case p.workQueues[i%p.workers] <- wrapped:
		case <-p.done:
			fn()
			completion.Done()
		}
	}
	completion.Wait()
}

// For runs fn for every index in [0, n), sharded over the workers in
// contiguous blocks, and returns when the whole range is done. Blocks are
// smaller than an even split so stolen work can rebalance a skewed range.
func (p *WorkerPool) For(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	blockSize := max(n/(p.workers*4), 1)
	work := make([]func(), 0, (n+blockSize-1)/blockSize)
	for start := 0; start < n; start += blockSize {
		end := min(start+blockSize, n)
		work = append(work, func() {
			for i := start; i < end; i++ {
				fn(i)
			}
		})
	}
	p.ExecuteAll(work)
}

// Close stops the workers after the queued work runs. Safe to call twice;
// ExecuteAll and For keep working afterwards, degraded to the caller's
// goroutine.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int {
	return p.workers
}

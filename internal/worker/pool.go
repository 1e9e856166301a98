package worker

import (
	"errors"
	"sync"

	"github.com/baharkarakas/broker-ledger/internal/metrics"
)

var ErrQueueFull = errors.New("worker: queue full")
var ErrStopped = errors.New("worker: pool stopped")

type task func()

type Pool struct {
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	jobs    chan task
}

func NewPool(n, queue int) *Pool {
	if n < 1 {
		n = 1
	}
	if queue < 1 {
		queue = 1024
	}
	p := &Pool{jobs: make(chan task, queue)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Dec()
				job()
			}
		}()
	}
	return p
}

// TrySubmit queues the job only when there is room for it.
func (p *Pool) TrySubmit(f task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- f:
		metrics.WorkerQueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains queued jobs and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

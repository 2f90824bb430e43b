// Package workerpool runs tasks on a fixed number of goroutines fed by a
// bounded queue.
package workerpool

import (
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Pool executes submitted tasks on a fixed set of workers. Submission never
// blocks: a task that does not fit in the queue is rejected.
type Pool struct {
	mu     sync.RWMutex
	tasks  chan func()
	group  errgroup.Group
	closed bool
}

// New starts workers goroutines draining a queue of queueSize tasks.
func New(workers, queueSize int) (*Pool, error) {
	if workers < 1 {
		return nil, errors.Newf("workers must be at least 1, got %d", workers)
	}
	if queueSize < 0 {
		return nil, errors.Newf("queue size must not be negative, got %d", queueSize)
	}

	p := &Pool{tasks: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		p.group.Go(p.work)
	}
	return p, nil
}

func (p *Pool) work() error {
	for task := range p.tasks {
		task()
	}
	return nil
}

// TrySubmit queues task and reports whether it was accepted. It returns false
// when the queue is full or the pool is closed.
func (p *Pool) TrySubmit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits until queued and running tasks have
// finished. Calling Close more than once is safe.
func (p *Pool) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	return p.group.Wait()
}

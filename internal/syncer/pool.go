package syncer

import (
	"context"
	"sync"
)

// task is one async continuation: a cache write or a remote call.
type task func(ctx context.Context)

// taskPool is a fixed-size goroutine pool with a bounded input queue.
// pending counts every accepted task until it has finished running.
type taskPool struct {
	ctx     context.Context
	queue   chan task
	wg      sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// newTaskPool creates and starts a pool with n goroutines and queue capacity cap.
// Tasks run with ctx, not with the context of whoever submitted them.
func newTaskPool(ctx context.Context, n, cap int) *taskPool {
	if n <= 0 {
		n = 1
	}
	p := &taskPool{
		ctx:   ctx,
		queue: make(chan task, cap),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run()
		}()
	}
	return p
}

func (p *taskPool) run() {
	for t := range p.queue {
		t(p.ctx)
		p.pending.Done()
	}
}

// Submit enqueues a task without blocking (returns false if full or drained).
func (p *taskPool) Submit(t task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.pending.Add(1)
	select {
	case p.queue <- t:
		return true
	default:
		p.pending.Done()
		return false
	}
}

// Enqueue adds a task, waiting for queue space when it is full. It returns
// false only once the pool has been drained.
func (p *taskPool) Enqueue(t task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.pending.Add(1)
	p.queue <- t
	return true
}

// Wait blocks until every accepted task has finished.
func (p *taskPool) Wait() {
	p.pending.Wait()
}

// Drain closes the queue and waits for the workers to finish what is queued.
func (p *taskPool) Drain() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

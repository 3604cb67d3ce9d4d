package service

import (
	"context"
	"sync"
	"time"

	"bananaslides/internal/domain"
)

// taskPersister is the single writer of one task's storage state. Snapshots are
// queued without blocking and written in order on the persister's goroutine;
// while a write is in flight newer snapshots coalesce into the latest one.
type taskPersister struct {
	write func(ctx context.Context, task *domain.ConversionTask, full bool)
	// timeout bounds each write. Writes do not inherit the pipeline's context
	// so a cancelled job still records its final state.
	timeout time.Duration

	mu      sync.Mutex
	pending *domain.ConversionTask
	full    bool
	writing bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newTaskPersister(timeout time.Duration, write func(ctx context.Context, task *domain.ConversionTask, full bool)) *taskPersister {
	p := &taskPersister{
		write:   write,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue replaces any unwritten snapshot with task. A full write stays full
// until it is flushed, even if a later snapshot only needs progress.
func (p *taskPersister) enqueue(task *domain.ConversionTask, full bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending = task
	p.full = p.full || full
	p.mu.Unlock()
	p.signal()
}

// close writes whatever is pending and stops the goroutine.
func (p *taskPersister) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.signal()
}

func (p *taskPersister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// idle reports whether every queued snapshot has been written.
func (p *taskPersister) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending == nil && !p.writing
}

func (p *taskPersister) run() {
	defer close(p.done)
	for range p.wake {
		for {
			p.mu.Lock()
			task, full, closed := p.pending, p.full, p.closed
			p.pending, p.full = nil, false
			p.writing = task != nil
			p.mu.Unlock()

			if task == nil {
				if closed {
					return
				}
				break
			}

			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			p.write(ctx, task, full)
			cancel()

			p.mu.Lock()
			p.writing = false
			p.mu.Unlock()
		}
	}
}

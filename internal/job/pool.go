package job

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// ErrPoolClosed is returned by Dispatch once the pool has stopped.
var ErrPoolClosed = errors.New("worker pool is closed")

// Runner executes one job.
type Runner interface {
	Run(ctx context.Context, id int64) error
}

// Pool runs a fixed number of goroutines that take dispatched job ids off an
// in-memory queue.
type Pool struct {
	runner  Runner
	workers int
	notify  chan struct{}

	mu      sync.Mutex
	queue   []int64
	running map[int64]int
	closed  bool
}

var _ Dispatcher = (*Pool)(nil)

// NewPool creates a pool with the given number of workers.
func NewPool(runner Runner, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		runner:  runner,
		workers: workers,
		notify:  make(chan struct{}, 1),
		running: make(map[int64]int),
	}
}

// Dispatch queues id and wakes an idle worker. It never blocks.
func (p *Pool) Dispatch(_ context.Context, id int64) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, id)
	p.mu.Unlock()

	p.wake()
	return nil
}

func (p *Pool) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run starts worker goroutines and blocks until ctx is cancelled and every
// in-flight job has finished. Jobs still queued at that point stay PENDING.
func (p *Pool) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, p.close)
	defer stop()

	var wg sync.WaitGroup
	for i := range p.workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()

	p.close()
	if left := p.Pending(); len(left) > 0 {
		slog.Warn("pool: jobs left pending at shutdown", "count", len(left), "jobs", left)
	}
}

func (p *Pool) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Pending returns the queued job ids that no worker has taken yet.
func (p *Pool) Pending() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.queue...)
}

// Holds reports whether id is queued or running in this pool.
func (p *Pool) Holds(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running[id] > 0 || slices.Contains(p.queue, id)
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		// Drain the queue before waiting.
		p.drain(ctx, id)

		select {
		case <-ctx.Done():
			return
		case <-p.notify:
		}
	}
}

func (p *Pool) drain(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}
		id, ok := p.next()
		if !ok {
			return
		}

		// A started job runs to its terminal state even during shutdown.
		err := p.runner.Run(context.WithoutCancel(ctx), id)
		p.finish(id)
		if err != nil {
			slog.Error("pool: run job", "worker", worker, "job", id, "error", err)
		}
	}
}

func (p *Pool) next() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return 0, false
	}
	id := p.queue[0]
	p.queue = p.queue[1:]
	// Marked running under the same lock so Holds never misses the handoff.
	p.running[id]++
	return id, true
}

func (p *Pool) finish(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running[id] <= 1 {
		delete(p.running, id)
		return
	}
	p.running[id]--
}

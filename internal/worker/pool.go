// Package worker runs background jobs on a fixed set of goroutines fed by
// a bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"narrative-timeline/backend/internal/logging"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrPoolClosed is returned by Submit after Stop.
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Job is a unit of background work.
type Job func(ctx context.Context) error

// FailureFunc receives every job error, including recovered panics.
type FailureFunc func(name string, err error)

// Config sizes the pool.
type Config struct {
	Concurrency int
	QueueSize   int
}

type task struct {
	name string
	job  Job
}

// Pool owns its workers, its queue and the context handed to jobs.
type Pool struct {
	cfg       Config
	queue     chan task
	logger    *logging.Logger
	onFailure FailureFunc

	mu      sync.RWMutex
	closed  bool
	started bool

	g      errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Pool. onFailure may be nil, in which case failures are only logged.
func New(cfg Config, logger *logging.Logger, onFailure FailureFunc) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:       cfg,
		queue:     make(chan task, cfg.QueueSize),
		logger:    logger,
		onFailure: onFailure,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers. Jobs run on a context detached from ctx's
// cancellation, so request-scoped contexts can be passed safely.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	base := context.WithoutCancel(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.g.Go(func() error {
			for t := range p.queue {
				p.run(base, t)
			}
			return nil
		})
	}
	p.logger.Info("worker pool started", "concurrency", p.cfg.Concurrency, "queue_size", p.cfg.QueueSize)
}

// Submit enqueues a job without blocking.
func (p *Pool) Submit(name string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task{name: name, job: job}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting jobs and waits for queued and running jobs to finish.
// When ctx expires first, running jobs see their context cancelled and Stop
// returns ctx's error once they exit.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.g.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) run(base context.Context, t task) {
	ctx, cancel := context.WithCancel(base)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return t.job(ctx)
	}()
	if err == nil {
		return
	}

	p.logger.Error("background job failed", "job", t.name, "error", err)
	if p.onFailure != nil {
		p.onFailure(t.name, err)
	}
}

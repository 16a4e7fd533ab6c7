package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/launchorch/pkg/ports"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a pool that is shut down
var ErrPoolClosed = errors.New("worker pool closed")

// ErrQueueFull is returned by TrySubmit when every queue slot is taken
var ErrQueueFull = errors.New("worker queue is full")

// Job is a unit of work run by one worker
type Job func()

// Pool manages a pool of worker goroutines
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	jobs    chan Job
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	started bool
	closed  bool
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
	jobs    int
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool. queueSize bounds the jobs waiting for a
// free worker; Submit blocks while the queue is full and TrySubmit fails.
func NewPool(
	size, queueSize int,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		metrics: metrics,
		logger:  logger,
		jobs:    make(chan Job, queueSize),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < size; i++ {
		pool.workers[i] = &worker{
			id:     fmt.Sprintf("worker-%d", i),
			pool:   pool,
			status: WorkerStatusStopped,
		}
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.started {
		return nil
	}
	p.started = true

	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for _, w := range p.workers {
		w.setStatus(WorkerStatusIdle)
		p.wg.Add(1)
		go w.run(p.ctx)
	}

	// Start health monitor
	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit queues a job. It blocks while the queue is full and fails when ctx
// ends first or the pool is shut down.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues a job without waiting. It returns ErrQueueFull when no
// queue slot is free.
func (p *Pool) TrySubmit(job Job) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of jobs waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Shutdown stops accepting jobs, lets running jobs finish and stops the
// workers. Jobs still queued are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Info("shutting down worker pool", zap.Int("queued", len(p.jobs)))

	// Stop health monitor
	p.health.Stop()

	// Cancel context to signal workers to stop
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	if status == WorkerStatusBusy {
		w.lastJob = time.Now()
		w.jobs++
	}
	w.mu.Unlock()
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		// Prefer stopping over picking up more work
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		default:
		}

		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case job := <-w.pool.jobs:
			w.execute(job)
		}
	}
}

// execute runs one job and keeps the worker alive if it panics
func (w *worker) execute(job Job) {
	w.setStatus(WorkerStatusBusy)
	defer w.setStatus(WorkerStatusIdle)

	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("job panicked",
				zap.String("worker_id", w.id),
				zap.Any("panic", r))
		}
	}()

	job()
}

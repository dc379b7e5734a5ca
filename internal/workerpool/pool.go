package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/tokentrail/internal/metrics"
)

// DefaultConcurrency is used when no positive concurrency is given.
const DefaultConcurrency = 10

// ErrTerminated is returned by Add after Terminate.
var ErrTerminated = errors.New("workerpool is terminating")

// Task is one unit of work. Name identifies the task in logs.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Status is a snapshot of the pool.
type Status struct {
	Queued  int
	Running int
}

// Pool executes tasks with at most K running at once.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue      []Task
	running    int
	terminated bool

	// idle is closed while the pool has no queued or running task and is
	// replaced when work arrives.
	idle       chan struct{}
	idleClosed bool

	concurrency int
	ctx         context.Context
	workers     sync.WaitGroup
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Pool.
type Option func(*Pool)

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger used for task failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithMetrics publishes queue and running counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// WithContext sets the context handed to every task. Terminate does not
// cancel it; cancelling it is the owner's decision.
func WithContext(ctx context.Context) Option {
	return func(p *Pool) {
		if ctx != nil {
			p.ctx = ctx
		}
	}
}

// New starts a pool. Workers block until tasks arrive.
func New(opts ...Option) *Pool {
	p := &Pool{
		concurrency: DefaultConcurrency,
		ctx:         context.Background(),
		idle:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.cond = sync.NewCond(&p.mu)

	close(p.idle)
	p.idleClosed = true

	p.workers.Add(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go p.work()
	}
	return p
}

// Concurrency returns the number of workers.
func (p *Pool) Concurrency() int {
	return p.concurrency
}

// Add enqueues a task. It never blocks on running work.
func (p *Pool) Add(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task %q has no Run function", task.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return ErrTerminated
	}
	p.queue = append(p.queue, task)
	if p.idleClosed {
		p.idle = make(chan struct{})
		p.idleClosed = false
	}
	p.publishLocked()
	p.cond.Signal()
	return nil
}

// Status returns the current queue length and running count.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{Queued: len(p.queue), Running: p.running}
}

// Idle reports whether nothing is queued and nothing is running.
func (p *Pool) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) == 0 && p.running == 0
}

// Drained blocks until the pool is idle or ctx is done.
//
// A task that adds follow-up work before returning keeps the pool busy, so
// Drained returns only once the whole frontier is exhausted.
func (p *Pool) Drained(ctx context.Context) error {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 && p.running == 0 {
			p.mu.Unlock()
			return nil
		}
		idle := p.idle
		p.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Terminate discards queued tasks, stops accepting new ones, and waits
// until running tasks return or ctx is done. It is safe to call more than once.
func (p *Pool) Terminate(ctx context.Context) error {
	p.mu.Lock()
	discarded := len(p.queue)
	p.queue = nil
	p.terminated = true
	p.markIdleLocked()
	p.publishLocked()
	p.cond.Broadcast()
	p.mu.Unlock()

	if discarded > 0 {
		p.logger.Info("worker pool terminating", "discarded_tasks", discarded)
	}

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}

func (p *Pool) work() {
	defer p.workers.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.terminated {
			p.cond.Wait()
		}
		if p.terminated {
			p.mu.Unlock()
			return
		}
		last := len(p.queue) - 1
		task := p.queue[last]
		p.queue[last] = Task{}
		p.queue = p.queue[:last]
		p.running++
		p.publishLocked()
		p.mu.Unlock()

		p.run(task)

		p.mu.Lock()
		p.running--
		if len(p.queue) == 0 && p.running == 0 {
			p.markIdleLocked()
		}
		p.publishLocked()
		p.mu.Unlock()
	}
}

// run executes one task, logging its error or panic.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task", task.Name, "panic", r)
			p.metrics.TaskFinished("panic")
		}
	}()

	if err := task.Run(p.ctx); err != nil {
		p.logger.Error("task failed", "task", task.Name, "error", err)
		p.metrics.TaskFinished("error")
		return
	}
	p.metrics.TaskFinished("ok")
}

func (p *Pool) markIdleLocked() {
	if !p.idleClosed && p.running == 0 {
		close(p.idle)
		p.idleClosed = true
	}
}

func (p *Pool) publishLocked() {
	p.metrics.SetPoolStatus(len(p.queue), p.running)
}

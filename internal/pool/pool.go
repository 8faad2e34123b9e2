// Package pool runs transfer tasks on a fixed set of goroutines with a bounded
// number of tasks in flight.
//
// Submit blocks only until a capacity slot is free, so a producer can keep
// listing while earlier tasks run. A failed task is reported through the
// error callback and never stops its siblings. Tasks are not retried and have
// no timeout of their own: a task that hangs holds its slot until it returns.
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/neurender/neurender/internal/logger"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is used when a pool is created with a non-positive worker count.
const DefaultWorkers = 8

// ErrClosed is returned by Submit after Wait has been called.
var ErrClosed = errors.New("pool is closed")

// Task is one unit of work.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type job struct {
	ctx  context.Context
	task Task
}

// Pool is a bounded task queue drained by a fixed number of workers.
type Pool struct {
	workers int
	sem     *semaphore.Weighted
	queue   chan job
	onError func(error)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts a pool with the given number of workers.
// onError receives every task failure; nil logs failures as warnings.
func New(workers int, onError func(error)) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if onError == nil {
		onError = func(err error) {
			logger.Log.Warn().Err(err).Msg("Task failed")
		}
	}

	// The queue holds at most one entry per capacity slot, so sends never block.
	p := &Pool{
		workers: workers,
		sem:     semaphore.NewWeighted(int64(workers)),
		queue:   make(chan job, workers),
		onError: onError,
	}

	p.wg.Add(workers)
	for range workers {
		go p.work()
	}

	return p
}

// Workers returns the pool capacity.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) work() {
	defer p.wg.Done()
	for j := range p.queue {
		if err := j.task.Run(j.ctx); err != nil {
			p.onError(err)
		}
		p.sem.Release(1)
	}
}

// Submit queues t once a capacity slot is available.
// It returns ctx.Err() if ctx ends first, and ErrClosed after Wait.
func (p *Pool) Submit(ctx context.Context, t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.queue <- job{ctx: ctx, task: t}
	return nil
}

// Wait stops accepting tasks and blocks until every submitted task has finished.
// It is safe to call more than once.
func (p *Pool) Wait() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

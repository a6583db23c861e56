// Package worker runs bounded fan-outs of independent tasks.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/okian/tagtrail/pkg/logger"
	"github.com/okian/tagtrail/pkg/metrics"
)

const defaultLimitMultiplier = 8 // times runtime.NumCPU()

// Task is one unit of work in a fan-out.
type Task func(ctx context.Context) error

// Pool bounds how many tasks run at once across every Settle call.
type Pool struct {
	sem     *semaphore.Weighted
	limit   int
	name    string
	timeout time.Duration
	logger  logger.Logger
}

// NewPool creates a pool running at most limit tasks concurrently. A
// non-positive limit picks a multiple of the CPU count.
func NewPool(limit int, opts ...Option) *Pool {
	if limit <= 0 {
		limit = runtime.NumCPU() * defaultLimitMultiplier
	}
	p := &Pool{
		sem:    semaphore.NewWeighted(int64(limit)),
		limit:  limit,
		name:   "worker",
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Limit returns the concurrency bound.
func (p *Pool) Limit() int { return p.limit }

// Settle runs every task and waits for all of them. It never cancels a
// sibling after a failure: errs[i] is the outcome of tasks[i]. A task that
// panics reports the panic as its error. Tasks still waiting for a slot when
// ctx ends report ctx.Err().
func (p *Pool) Settle(ctx context.Context, tasks []Task) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(tasks); j++ {
				errs[j] = err
			}
			break
		}
		wg.Add(1)
		metrics.AddFanOutInFlight(1)
		go func(i int, task Task) {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("%s: task %d panicked: %v", p.name, i, r)
					p.logger.Error(ctx, "task panicked", logger.Int("task", i), logger.Any("panic", r))
				}
				metrics.AddFanOutInFlight(-1)
				p.sem.Release(1)
				wg.Done()
			}()
			errs[i] = p.run(ctx, task)
		}(i, task)
	}
	wg.Wait()
	return errs
}

func (p *Pool) run(ctx context.Context, task Task) error {
	if p.timeout <= 0 {
		return task(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return task(tctx)
}

package ratelimit

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool runs batches of tasks with bounded concurrency. An optional limiter
// spaces task starts.
type Pool struct {
	concurrency int
	limiter     *Limiter
}

// NewPool creates a pool running at most concurrency tasks at once
func NewPool(concurrency int, limiter *Limiter) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{concurrency: concurrency, limiter: limiter}
}

// Run executes task(ctx, i) for i in [0, n) and returns each task's error at
// index i, regardless of completion order. A failing task does not stop the
// others. Tasks not yet started when ctx is done are not run and report ctx's
// error.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		// The limiter is waited on inside the slot so a token is never spent
		// while the task is still queued for one.
		g.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					errs[i] = err
					return nil
				}
			}
			errs[i] = task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

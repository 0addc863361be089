// Package worker bounds how many heavy operations run at once.
package worker

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool admits at most size concurrent calls to Do; further callers wait
// until a slot frees or their context ends.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Do runs fn once a slot is available.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

func (p *Pool) Size() int {
	return p.size
}

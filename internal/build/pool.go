package build

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for 0..n-1 on at most workers goroutines. fn reports
// per-item failures through its own result slot; a returned error stops the
// pool and is only used for cancellation.
func forEach(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// budgeted runs fn under a time budget. On timeout fn keeps running in the
// background but its result is discarded.
func budgeted[T any](ctx context.Context, budget time.Duration, fn func() (T, error)) (T, error) {
	if budget <= 0 {
		return fn()
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

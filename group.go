package queryx

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// prefetchBounded runs fn for every item in args, at most concurrency at a
// time, and returns the first error encountered (after letting in-flight
// work finish, errgroup-style). concurrency <= 0 means unbounded.
func prefetchBounded[A any](ctx context.Context, args []A, concurrency int, fn func(context.Context, A) error) error {
	g, ctx := errgroup.WithContext(ctx)

	var gate chan struct{}
	if concurrency > 0 {
		gate = make(chan struct{}, concurrency)
	}

	for _, arg := range args {
		arg := arg
		g.Go(func() error {
			if gate != nil {
				select {
				case gate <- struct{}{}:
					defer func() { <-gate }()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return fn(ctx, arg)
		})
	}

	return g.Wait()
}

package queryx

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Endpoint is a named async function plus its Cache, the user-facing
// facade for a query. Observers are derived from an Endpoint with Use;
// cache-wide operations (prefetch, invalidate, direct update) go through
// the Endpoint rather than through any one Observer.
type Endpoint[A any, R any] struct {
	fn    AsyncFunc[A, R]
	opts  EndpointOptions[A]
	cache *Cache[A, R]

	invokeGroup singleflight.Group
}

// NewEndpoint creates an Endpoint around fn. opts is optional; zero-value
// EndpointOptions{} uses DefaultKeyFunc, SystemClock, and an always-stale
// default stale time.
func NewEndpoint[A any, R any](fn AsyncFunc[A, R], opts EndpointOptions[A], cacheOpts ...CacheOption[A, R]) *Endpoint[A, R] {
	opts = opts.withDefaults()
	return &Endpoint[A, R]{
		fn:    fn,
		opts:  opts,
		cache: newCache(fn, opts.KeyFunc, opts.Clock, cacheOpts...),
	}
}

// Use derives a fresh Observer bound to this Endpoint. The observer has
// no argument until SetArg/SetArgAsync is called.
func (ep *Endpoint[A, R]) Use(queryOpts ...QueryOptions[A, R]) *Observer[A, R] {
	var qo QueryOptions[A, R]
	if len(queryOpts) > 0 {
		qo = queryOpts[0]
	}
	return newObserver(ep, qo)
}

// Invoke calls the async function directly for arg, bypassing the cache
// entirely: no entry is created, nothing is retained, and no Observer
// sees the call. Concurrent Invoke calls for the same argument still
// share one underlying call via singleflight, since the point of
// bypassing the cache is to skip memoization, not to pay for duplicate
// concurrent network/database round-trips.
func (ep *Endpoint[A, R]) Invoke(ctx context.Context, arg A) (R, error) {
	key := ep.opts.KeyFunc(arg)
	v, err, _ := ep.invokeGroup.Do(key, func() (any, error) {
		return ep.fn(ctx, arg)
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return v.(R), nil
}

// Prefetch populates the cache for arg without attaching an observer. It
// only starts a refetch if the entry is Idle or Error; an entry already
// Loading or Success (even if stale) is left alone, since prefetching
// means "warm the cache", not "force a refresh".
func (ep *Endpoint[A, R]) Prefetch(ctx context.Context, arg A) {
	e := ep.cache.GetOrAdd(arg)
	snap := e.Snapshot()
	if snap.Status == StatusIdle || snap.Status == StatusError {
		go e.Refetch(ctx)
	}
}

// PrefetchMany prefetches every argument in args, running at most
// concurrency fetches at a time. concurrency <= 0 means unbounded. It
// gives a cache-warming pass the bulk form that Prefetch's single
// argument doesn't.
func (ep *Endpoint[A, R]) PrefetchMany(ctx context.Context, args []A, concurrency int) error {
	return prefetchBounded(ctx, args, concurrency, func(ctx context.Context, arg A) error {
		e := ep.cache.GetOrAdd(arg)
		snap := e.Snapshot()
		if snap.Status != StatusIdle && snap.Status != StatusError {
			return nil
		}
		_, err := e.Refetch(ctx)
		if isCancellation(err) {
			return nil
		}
		return err
	})
}

// Invalidate marks arg's entry stale, if it exists.
func (ep *Endpoint[A, R]) Invalidate(arg A) { ep.cache.Invalidate(arg) }

// InvalidateWhere invalidates every entry whose argument satisfies pred.
func (ep *Endpoint[A, R]) InvalidateWhere(pred func(A) bool) { ep.cache.InvalidateWhere(pred) }

// InvalidateAll invalidates every entry in the cache.
func (ep *Endpoint[A, R]) InvalidateAll() { ep.cache.InvalidateAll() }

// UpdateQueryData sets arg's cached data directly, without running the
// async function. Returns false if no entry exists for arg.
func (ep *Endpoint[A, R]) UpdateQueryData(arg A, value R) bool {
	return ep.cache.UpdateQueryData(arg, value)
}

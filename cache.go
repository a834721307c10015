package queryx

import "sync"

// Cache is the keyed store of Fixed Executions for one Endpoint. It
// deduplicates by argument, and offers the invalidate/update helpers an
// Endpoint exposes publicly.
//
// Cache never removes an entry, not even when its observer set becomes
// empty: invalidation marks an entry stale but keeps it in the map (see
// DESIGN.md). A prefetched entry with no observer yet is therefore
// always available to a subscription that follows it.
type Cache[A any, R any] struct {
	mu      sync.RWMutex
	entries map[string]*Execution[A, R]
	keyFunc KeyFunc[A]
	fn      AsyncFunc[A, R]
	clock   Clock

	observer CacheObserver
}

func newCache[A any, R any](fn AsyncFunc[A, R], keyFunc KeyFunc[A], clock Clock, opts ...CacheOption[A, R]) *Cache[A, R] {
	c := &Cache[A, R]{
		entries: make(map[string]*Execution[A, R]),
		keyFunc: keyFunc,
		fn:      fn,
		clock:   clock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[A, R]) emit(event Event, key string) {
	if c.observer == nil {
		return
	}
	c.observer.On(EventData{Event: event, Key: key})
}

// GetOrAdd returns the entry for arg, creating an Idle one if absent.
func (c *Cache[A, R]) GetOrAdd(arg A) *Execution[A, R] {
	key := c.keyFunc(arg)

	c.mu.RLock()
	if e, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		c.emit(EventHit, key)
		return e
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.emit(EventHit, key)
		return e
	}
	e := newExecution(arg, c.fn, c.clock)
	c.entries[key] = e
	c.emit(EventMiss, key)
	return e
}

// AddUncached returns a freshly allocated entry that is not inserted into
// the map. Used by Observer.Trigger's always-run semantics: a collision
// with a cached entry is impossible by construction, since the entry
// never enters c.entries.
func (c *Cache[A, R]) AddUncached(arg A) *Execution[A, R] {
	return newExecution(arg, c.fn, c.clock)
}

func (c *Cache[A, R]) lookup(arg A) (*Execution[A, R], bool) {
	key := c.keyFunc(arg)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	return e, ok
}

// Invalidate marks the entry for arg stale, if it exists. A no-op
// otherwise.
func (c *Cache[A, R]) Invalidate(arg A) {
	key := c.keyFunc(arg)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return
	}
	c.emit(EventInvalidate, key)
	e.Invalidate()
}

// InvalidateWhere invalidates every entry whose argument satisfies pred.
func (c *Cache[A, R]) InvalidateWhere(pred func(A) bool) {
	c.mu.RLock()
	var matches []*Execution[A, R]
	var keys []string
	for key, e := range c.entries {
		if pred(e.Arg()) {
			matches = append(matches, e)
			keys = append(keys, key)
		}
	}
	c.mu.RUnlock()

	for i, e := range matches {
		c.emit(EventInvalidate, keys[i])
		e.Invalidate()
	}
}

// InvalidateAll invalidates every entry in the cache.
func (c *Cache[A, R]) InvalidateAll() {
	c.InvalidateWhere(func(A) bool { return true })
}

// UpdateQueryData sets the data for arg's entry directly, if it exists,
// without running the async function. Returns false if no entry exists
// for arg.
func (c *Cache[A, R]) UpdateQueryData(arg A, value R) bool {
	key := c.keyFunc(arg)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	c.emit(EventUpdate, key)
	e.UpdateData(value)
	return true
}

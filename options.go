package queryx

import (
	"time"

	"github.com/google/uuid"
)

// CacheOption configures a Cache created by an Endpoint.
type CacheOption[A any, R any] func(*Cache[A, R])

// WithCacheObserver attaches a CacheObserver that receives hit, miss,
// invalidate, and update events for the lifetime of the Cache.
func WithCacheObserver[A any, R any](o CacheObserver) CacheOption[A, R] {
	return func(c *Cache[A, R]) {
		c.observer = o
	}
}

// EndpointOptions configures an Endpoint.
type EndpointOptions[A any] struct {
	// DefaultStaleTime is the staleness window used for observers that
	// do not set their own QueryOptions.StaleTime. Zero means every
	// entry is always stale (refetched on every subscription).
	DefaultStaleTime time.Duration
	// KeyFunc determines cache-key equality. Defaults to DefaultKeyFunc.
	KeyFunc KeyFunc[A]
	// Clock supplies "now" for staleness tests. Defaults to SystemClock.
	Clock Clock
}

func (o EndpointOptions[A]) withDefaults() EndpointOptions[A] {
	if o.KeyFunc == nil {
		o.KeyFunc = DefaultKeyFunc[A]
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	return o
}

// SuccessContext is passed to a QueryOptions.OnSuccess callback.
type SuccessContext[A any, R any] struct {
	Arg A
	// AttemptID identifies the specific Attempt that produced Result,
	// for correlating this callback with logs or traces emitted while
	// that attempt was in flight.
	AttemptID uuid.UUID
	Result    R
}

// FailureContext is passed to a QueryOptions.OnFailure callback.
type FailureContext[A any, R any] struct {
	Arg A
	// AttemptID identifies the specific Attempt that failed.
	AttemptID uuid.UUID
	Err       error
}

// QueryOptions configures a single Observer, overriding EndpointOptions
// defaults for that observer only.
type QueryOptions[A any, R any] struct {
	// StaleTime overrides EndpointOptions.DefaultStaleTime for this
	// observer when non-nil. A pointer to zero means "always stale",
	// distinct from leaving StaleTime nil ("use the endpoint default").
	StaleTime *time.Duration
	// OnSuccess fires after an attempt this observer is subscribed to
	// succeeds, before the observer's stateChanged notification.
	OnSuccess func(SuccessContext[A, R])
	// OnFailure fires after an attempt this observer is subscribed to
	// fails (excluding cancellation), before the observer's
	// stateChanged notification.
	OnFailure func(FailureContext[A, R])
}

package queryx

import (
	"context"
	"sync"
	"time"
)

// Observer is a subscriber bound to one Endpoint for its lifetime: it
// tracks the "current" execution for its argument and the "last
// successful" execution (possibly for a different argument, to keep
// previous-page data visible while a new page loads), and exposes derived
// status/data/error flags.
type Observer[A any, R any] struct {
	endpoint *Endpoint[A, R]
	opts     QueryOptions[A, R]

	mu             sync.Mutex
	current        *Execution[A, R]
	lastSuccessful *Execution[A, R]
	arg            A
	hasArg         bool

	nextListenerID int
	listeners      map[int]func()
}

func newObserver[A any, R any](ep *Endpoint[A, R], opts QueryOptions[A, R]) *Observer[A, R] {
	return &Observer[A, R]{
		endpoint:  ep,
		opts:      opts,
		listeners: make(map[int]func()),
	}
}

// OnStateChanged registers a listener that fires whenever this observer's
// derived state changes: a new current execution, or a state transition
// on the current execution. A rendering host subscribes here, re-reads
// the derived flags on each firing, and calls the returned unsubscribe
// (or Detach) when the consuming view tears down.
func (o *Observer[A, R]) OnStateChanged(listener func()) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextListenerID
	o.nextListenerID++
	o.listeners[id] = listener
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Observer[A, R]) fireStateChanged() {
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()
	if current != nil && current.Snapshot().Status == StatusSuccess {
		o.mu.Lock()
		if o.current == current {
			o.lastSuccessful = current
		}
		o.mu.Unlock()
	}

	o.mu.Lock()
	listeners := make([]func(), 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.mu.Unlock()
	for _, l := range listeners {
		l()
	}
}

func (o *Observer[A, R]) notifySuccess(ctx SuccessContext[A, R]) {
	o.mu.Lock()
	o.lastSuccessful = o.current
	cb := o.opts.OnSuccess
	o.mu.Unlock()
	if cb != nil {
		cb(ctx)
	}
}

func (o *Observer[A, R]) notifyFailure(ctx FailureContext[A, R]) {
	o.mu.Lock()
	cb := o.opts.OnFailure
	o.mu.Unlock()
	if cb != nil {
		cb(ctx)
	}
}

func (o *Observer[A, R]) resolvedStaleTime() time.Duration {
	if o.opts.StaleTime != nil {
		return *o.opts.StaleTime
	}
	return o.endpoint.opts.DefaultStaleTime
}

// setArg implements both SetArg and SetArgAsync. When wait is true it
// blocks for a triggered refetch and propagates its error; when false it
// fires the refetch in a goroutine and swallows the error (the entry's
// state still reflects the outcome).
func (o *Observer[A, R]) setArg(ctx context.Context, arg A, wait bool) error {
	next := o.endpoint.cache.GetOrAdd(arg)

	o.mu.Lock()
	sameExecution := next == o.current
	prev := o.current
	o.arg = arg
	o.hasArg = true
	if !sameExecution {
		o.current = next
	}
	o.mu.Unlock()

	if sameExecution {
		return nil
	}

	if prev != nil {
		prev.RemoveObserver(o)
	}
	next.AddObserver(o)
	o.fireStateChanged()

	snap := next.Snapshot()
	stale := !snap.IsFetching && next.IsStaleByTime(o.resolvedStaleTime(), o.endpoint.opts.Clock.Now())
	if !stale {
		return nil
	}

	if wait {
		_, err := next.Refetch(ctx)
		return err
	}
	go next.Refetch(context.Background())
	return nil
}

// SetArg assigns arg to this observer, switching its current execution if
// necessary, and starts a fire-and-forget refetch if the resolved
// execution is stale and not already fetching.
func (o *Observer[A, R]) SetArg(arg A) { _ = o.setArg(context.Background(), arg, false) }

// SetArgAsync is SetArg's awaited counterpart: it blocks until a refetch
// triggered by the new argument completes, and propagates its error
// (including cancellation).
func (o *Observer[A, R]) SetArgAsync(ctx context.Context, arg A) error {
	return o.setArg(ctx, arg, true)
}

// trigger implements both Trigger and TriggerAsync: always runs the async
// function for arg on an uncached execution, even if arg already has a
// cached success, and switches this observer onto that execution.
func (o *Observer[A, R]) trigger(ctx context.Context, arg A, wait bool) (R, error) {
	next := o.endpoint.cache.AddUncached(arg)

	o.mu.Lock()
	prev := o.current
	o.current = next
	o.arg = arg
	o.hasArg = true
	o.mu.Unlock()

	if prev != nil {
		prev.RemoveObserver(o)
	}
	next.AddObserver(o)
	o.fireStateChanged()

	if wait {
		return next.Refetch(ctx)
	}
	go next.Refetch(context.Background())
	var zero R
	return zero, nil
}

// Trigger always runs the async function for arg, bypassing any cached
// success, fire-and-forget. This is the "mutation" pattern: side-effecting
// calls that must not pollute the shared cache.
func (o *Observer[A, R]) Trigger(arg A) { _, _ = o.trigger(context.Background(), arg, false) }

// TriggerAsync is Trigger's awaited counterpart.
func (o *Observer[A, R]) TriggerAsync(ctx context.Context, arg A) (R, error) {
	return o.trigger(ctx, arg, true)
}

// Refetch starts (or joins) a refetch on the current execution,
// fire-and-forget. Returns ErrNoCurrentExecution if no argument has been
// set yet.
func (o *Observer[A, R]) Refetch() error {
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()
	if current == nil {
		return ErrNoCurrentExecution
	}
	go current.Refetch(context.Background())
	return nil
}

// RefetchAsync blocks until the current execution's refetch completes.
// Returns ErrNoCurrentExecution if no argument has been set yet — a
// programmer-error signal, not a fetch failure.
func (o *Observer[A, R]) RefetchAsync(ctx context.Context) (R, error) {
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()
	if current == nil {
		var zero R
		return zero, ErrNoCurrentExecution
	}
	return current.Refetch(ctx)
}

// Cancel cancels the current execution's in-flight attempt, if any. A
// no-op if there is no current execution or no attempt in flight.
func (o *Observer[A, R]) Cancel() {
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()
	if current != nil {
		current.Cancel()
	}
}

// Detach removes this observer from its current execution's observer set
// and clears its current execution. Idempotent.
func (o *Observer[A, R]) Detach() {
	o.mu.Lock()
	current := o.current
	o.current = nil
	o.mu.Unlock()
	if current != nil {
		current.RemoveObserver(o)
	}
}

// --- derived flags -------------------------------------------------------

func (o *Observer[A, R]) currentSnapshot() (Snapshot[A, R], bool) {
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()
	if current == nil {
		return Snapshot[A, R]{}, false
	}
	return current.Snapshot(), true
}

// Status returns the current execution's status, or StatusIdle if no
// argument has been set yet.
func (o *Observer[A, R]) Status() Status {
	snap, ok := o.currentSnapshot()
	if !ok {
		return StatusIdle
	}
	return snap.Status
}

// Data returns the current execution's data, if any.
func (o *Observer[A, R]) Data() (R, bool) {
	snap, ok := o.currentSnapshot()
	if !ok {
		var zero R
		return zero, false
	}
	return snap.Data, snap.HasData
}

// LastData returns the current execution's data if it is in Success
// status, or else the last-successful execution's data, if any exists.
// It is non-nil for every state an observer reaches after its first
// Success, until the observer is detached — this keeps a previous page's
// data visible while a new page loads. The one exception is a Cancel on
// the recorded execution itself, which clears that execution's data.
func (o *Observer[A, R]) LastData() (R, bool) {
	snap, ok := o.currentSnapshot()
	if ok && snap.Status == StatusSuccess {
		return snap.Data, true
	}

	o.mu.Lock()
	last := o.lastSuccessful
	o.mu.Unlock()
	if last == nil {
		var zero R
		return zero, false
	}
	lastSnap := last.Snapshot()
	return lastSnap.Data, lastSnap.HasData
}

// Err returns the current execution's error, if any.
func (o *Observer[A, R]) Err() error {
	snap, ok := o.currentSnapshot()
	if !ok {
		return nil
	}
	return snap.Err
}

// IsLoading reports whether the current execution is Loading.
func (o *Observer[A, R]) IsLoading() bool { return o.Status() == StatusLoading }

// IsFetching reports whether the current execution has an attempt in
// flight, regardless of status (including a stale refetch behind
// existing Success data).
func (o *Observer[A, R]) IsFetching() bool {
	snap, ok := o.currentSnapshot()
	return ok && snap.IsFetching
}

// IsSuccess reports whether the current execution's status is Success.
func (o *Observer[A, R]) IsSuccess() bool { return o.Status() == StatusSuccess }

// IsError reports whether the current execution's status is Error.
func (o *Observer[A, R]) IsError() bool { return o.Status() == StatusError }

// IsUninitialized reports whether no argument has been set yet.
func (o *Observer[A, R]) IsUninitialized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.hasArg
}

// HasData reports whether the current execution has data.
func (o *Observer[A, R]) HasData() bool {
	snap, ok := o.currentSnapshot()
	return ok && snap.HasData
}

// Arg returns the argument currently assigned to this observer, if any.
func (o *Observer[A, R]) Arg() (A, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.arg, o.hasArg
}

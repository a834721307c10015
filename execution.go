package queryx

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AsyncFunc is the async function contract: it receives the argument and a
// cancellation signal, and returns a result or an error. Implementations
// opt into cancellation by checking ctx and returning (or wrapping)
// ctx.Err() once ctx.Done() fires; any other returned error is surfaced as
// the entry's error.
type AsyncFunc[A any, R any] func(ctx context.Context, arg A) (R, error)

// attempt identifies one invocation of an Execution's async function. Its
// id is used only for tracing; supersession is detected by pointer
// identity against Execution.inFlight.
type attempt[R any] struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
	value  R
	err    error
}

func (a *attempt[R]) wait() (R, error) {
	<-a.done
	return a.value, a.err
}

func (a *attempt[R]) finish(value R, err error) {
	a.value = value
	a.err = err
	close(a.done)
}

// Execution is the per-(endpoint, argument) state machine: it runs the
// async function at most once at a time for its argument, tracks
// status/data/error, and broadcasts state changes to its attached
// observers.
type Execution[A any, R any] struct {
	arg   A
	fn    AsyncFunc[A, R]
	clock Clock

	mu               sync.Mutex
	status           Status
	data             R
	hasData          bool
	err              error
	dataUpdatedAt    time.Time
	hasDataUpdatedAt bool
	isInvalidated    bool
	inFlight         *attempt[R]
	observers        []*Observer[A, R]
}

func newExecution[A any, R any](arg A, fn AsyncFunc[A, R], clock Clock) *Execution[A, R] {
	return &Execution[A, R]{arg: arg, fn: fn, clock: clock, status: StatusIdle}
}

// Arg returns the argument this execution was created for.
func (e *Execution[A, R]) Arg() A { return e.arg }

// Snapshot is a point-in-time, read-only view of an Execution's state.
type Snapshot[A any, R any] struct {
	Arg              A
	Status           Status
	Data             R
	HasData          bool
	Err              error
	DataUpdatedAt    time.Time
	HasDataUpdatedAt bool
	IsInvalidated    bool
	IsFetching       bool
}

// Snapshot reads the execution's current state under its lock.
func (e *Execution[A, R]) Snapshot() Snapshot[A, R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot[A, R]{
		Arg:              e.arg,
		Status:           e.status,
		Data:             e.data,
		HasData:          e.hasData,
		Err:              e.err,
		DataUpdatedAt:    e.dataUpdatedAt,
		HasDataUpdatedAt: e.hasDataUpdatedAt,
		IsInvalidated:    e.isInvalidated,
		IsFetching:       e.inFlight != nil,
	}
}

// AddObserver registers o as a subscriber. Observers are kept in
// insertion order so completion callbacks fire in that same order.
func (e *Execution[A, R]) AddObserver(o *Observer[A, R]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.observers {
		if existing == o {
			return
		}
	}
	e.observers = append(e.observers, o)
}

// RemoveObserver unregisters o. A no-op if o is not attached.
func (e *Execution[A, R]) RemoveObserver(o *Observer[A, R]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.observers {
		if existing == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

func (e *Execution[A, R]) observerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.observers)
}

// IsStaleByTime reports whether this entry should be considered stale
// given staleTime and the current instant now.
func (e *Execution[A, R]) IsStaleByTime(staleTime time.Duration, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isInvalidated {
		return true
	}
	if !e.hasDataUpdatedAt {
		return true
	}
	return now.Sub(e.dataUpdatedAt) >= staleTime
}

// Refetch starts an attempt, or returns the in-flight one's result if an
// attempt is already running (deduplication). It blocks until the
// attempt's async function returns and yields that function's own result:
// after Cancel, it returns whatever the function returns once it honors
// (or ignores) the cancellation.
func (e *Execution[A, R]) Refetch(ctx context.Context) (R, error) {
	e.mu.Lock()
	if e.inFlight != nil {
		att := e.inFlight
		e.mu.Unlock()
		return att.wait()
	}
	att := e.beginAttemptLocked(ctx)
	observers := e.snapshotObserversLocked()
	e.mu.Unlock()
	e.broadcastSync(observers)

	value, err := e.fn(att.ctx(), e.arg)
	e.completeAttempt(att, value, err)
	return att.wait()
}

// internal attempt wrapper carrying its derived context alongside the
// fields attempt[R] exposes to waiters.
type runningAttempt[R any] struct {
	*attempt[R]
	c context.Context
}

func (a *runningAttempt[R]) ctx() context.Context { return a.c }

func (e *Execution[A, R]) beginAttemptLocked(ctx context.Context) *runningAttempt[R] {
	attCtx, cancel := context.WithCancel(ctx)
	att := &runningAttempt[R]{
		attempt: &attempt[R]{id: uuid.New(), cancel: cancel, done: make(chan struct{})},
		c:       attCtx,
	}
	e.inFlight = att.attempt
	if e.status != StatusSuccess {
		e.status = StatusLoading
		e.err = nil
	}
	return att
}

// broadcastSync fires stateChanged on each observer. Must be called with
// e.mu NOT held, since stateChanged listeners may call back into e.
func (e *Execution[A, R]) broadcastSync(observers []*Observer[A, R]) {
	for _, o := range observers {
		o.fireStateChanged()
	}
}

func (e *Execution[A, R]) snapshotObserversLocked() []*Observer[A, R] {
	return append([]*Observer[A, R](nil), e.observers...)
}

// completeAttempt finalizes att exactly once. If att has been superseded
// (no longer e.inFlight) the completion is discarded silently and no
// notification fires, per the supersession rule.
func (e *Execution[A, R]) completeAttempt(att *runningAttempt[R], value R, err error) {
	att.finish(value, err)

	e.mu.Lock()
	if e.inFlight != att.attempt {
		e.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		e.data = value
		e.hasData = true
		e.status = StatusSuccess
		e.err = nil
		e.dataUpdatedAt = e.clock.Now()
		e.hasDataUpdatedAt = true
		e.isInvalidated = false
		e.inFlight = nil
		observers := e.snapshotObserversLocked()
		e.mu.Unlock()

		for _, o := range observers {
			o.notifySuccess(SuccessContext[A, R]{Arg: e.arg, AttemptID: att.id, Result: value})
		}
		e.broadcastSync(observers)

	case isCancellation(err):
		e.status = StatusIdle
		e.err = nil
		var zero R
		e.data = zero
		e.hasData = false
		e.inFlight = nil
		observers := e.snapshotObserversLocked()
		e.mu.Unlock()

		e.broadcastSync(observers)

	default:
		e.err = err
		e.status = StatusError
		e.inFlight = nil
		observers := e.snapshotObserversLocked()
		e.mu.Unlock()

		for _, o := range observers {
			o.notifyFailure(FailureContext[A, R]{Arg: e.arg, AttemptID: att.id, Err: err})
		}
		e.broadcastSync(observers)
	}
}

// Cancel cancels the currently in-flight attempt, if any, and resets the
// entry to an idle-like state immediately. Clearing inFlight here, rather
// than waiting for the attempt to notice ctx.Done() and return, is what
// makes the cancelled attempt superseded: a Refetch called right after
// Cancel starts a fresh attempt instead of waiting on the old one, and
// the old attempt's eventual completion, however it resolves, is
// discarded by the e.inFlight != att.attempt check in completeAttempt.
// A no-op if no attempt is running.
func (e *Execution[A, R]) Cancel() {
	e.mu.Lock()
	att := e.inFlight
	if att == nil {
		e.mu.Unlock()
		return
	}
	e.inFlight = nil
	e.status = StatusIdle
	e.err = nil
	var zero R
	e.data = zero
	e.hasData = false
	observers := e.snapshotObserversLocked()
	e.mu.Unlock()

	att.cancel()
	e.broadcastSync(observers)
}

// UpdateData sets the entry's data directly, without running the async
// function, and marks it fresh and successful.
func (e *Execution[A, R]) UpdateData(value R) {
	e.mu.Lock()
	e.data = value
	e.hasData = true
	e.status = StatusSuccess
	e.err = nil
	e.dataUpdatedAt = e.clock.Now()
	e.hasDataUpdatedAt = true
	e.isInvalidated = false
	observers := e.snapshotObserversLocked()
	e.mu.Unlock()

	e.broadcastSync(observers)
}

// Invalidate marks the entry stale. If it has at least one attached
// observer, a refetch starts immediately (fire-and-forget); otherwise
// staleness takes effect on the next subscription or explicit refetch.
func (e *Execution[A, R]) Invalidate() {
	e.mu.Lock()
	e.isInvalidated = true
	hasObservers := len(e.observers) > 0
	e.mu.Unlock()

	if hasObservers {
		go e.Refetch(context.Background())
	}
}

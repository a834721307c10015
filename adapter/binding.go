// Package adapter implements the observer-owning contract a UI "use
// endpoint" wrapper needs: on endpoint change, detach the old observer
// and create a new one; on options change, same; on argument change,
// call SetArg. The argument may be known before the endpoint (or vice
// versa); Binding defers SetArg until both are known.
package adapter

import (
	"sync"

	"github.com/arthdev/queryx"
)

// Binding owns at most one Observer at a time, rebuilding it whenever its
// Endpoint or QueryOptions change, and forwarding argument changes to the
// live Observer via SetArg.
type Binding[A any, R any] struct {
	mu sync.Mutex

	endpoint *queryx.Endpoint[A, R]
	opts     queryx.QueryOptions[A, R]
	arg      A
	hasArg   bool
	observer *queryx.Observer[A, R]
}

// SetEndpoint rebinds to a new Endpoint, detaching any observer on the
// previous one. A no-op if ep is already the bound endpoint.
func (b *Binding[A, R]) SetEndpoint(ep *queryx.Endpoint[A, R]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ep == b.endpoint {
		return
	}
	b.detachLocked()
	b.endpoint = ep
	b.rebindLocked()
}

// SetOptions replaces the QueryOptions used for future observers,
// rebuilding the current one so the new options take effect immediately.
func (b *Binding[A, R]) SetOptions(opts queryx.QueryOptions[A, R]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opts = opts
	b.detachLocked()
	b.rebindLocked()
}

// SetArg assigns the argument to track. If an Observer already exists,
// the change is forwarded directly; otherwise it is held until an
// Endpoint becomes known.
func (b *Binding[A, R]) SetArg(arg A) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arg = arg
	b.hasArg = true
	if b.observer != nil {
		b.observer.SetArg(arg)
		return
	}
	b.rebindLocked()
}

func (b *Binding[A, R]) rebindLocked() {
	if b.endpoint == nil || !b.hasArg {
		return
	}
	b.observer = b.endpoint.Use(b.opts)
	b.observer.SetArg(b.arg)
}

func (b *Binding[A, R]) detachLocked() {
	if b.observer != nil {
		b.observer.Detach()
		b.observer = nil
	}
}

// Observer returns the currently bound Observer, or nil if the binding
// has not yet observed both an Endpoint and an argument.
func (b *Binding[A, R]) Observer() *queryx.Observer[A, R] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.observer
}

// Close detaches the current observer, if any. A rendering host must
// call this when the consuming view tears down.
func (b *Binding[A, R]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked()
}

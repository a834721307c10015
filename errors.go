package queryx

import (
	"context"
	"errors"
)

// ErrNoCurrentExecution is returned by an Observer's Refetch and
// RefetchAsync when it has no current execution (no argument has been set
// yet, or the observer was detached). It signals programmer
// misuse, not a fetch failure: it is never recorded on a Fixed Execution
// and never reaches onFailure/onSuccess callbacks.
var ErrNoCurrentExecution = errors.New("queryx: observer has no current execution")

// ErrCancelled is returned to the caller of a refetch that was cancelled
// via Execution.Cancel or Observer.Cancel. It is an alias of
// context.Canceled: an async function opts into cancellation by returning
// (or wrapping) ctx.Err() once its context.Context is done.
var ErrCancelled = context.Canceled

// isCancellation reports whether err represents the attempt's own
// cancellation signal firing, as opposed to an ordinary function failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

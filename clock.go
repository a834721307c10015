package queryx

import "time"

// Clock abstracts wall-clock time so staleness tests can be driven by
// fakes in tests instead of the real clock.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the Clock used by an Endpoint when EndpointOptions.Clock
// is left unset.
var SystemClock Clock = systemClock{}

// Package clock provides an injectable notion of time, so that token
// leases and cache timestamps can be tested without sleeping.
package clock

import "time"

// Clock is the minimal time source used throughout pfs. Production code
// takes a Clock instead of calling time.Now directly so tests can swap in
// a SimulatedClock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After behaves like time.After, returning a channel that receives
	// the current time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

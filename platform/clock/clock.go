// Package clock provides an injectable time source so services that compare
// timestamps against thresholds or expiries can be tested deterministically.
// This is part of the platform layer and contains no business logic.
package clock

import "time"

// Clock is the time source consumed by services.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the wall clock.
type System struct{}

// Now returns the current time.
func (System) Now() time.Time { return time.Now() }

// Fixed is a Clock pinned to a settable instant, for tests.
type Fixed struct {
	Time time.Time
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time { return f.Time }

// Advance moves the pinned instant forward.
func (f *Fixed) Advance(d time.Duration) { f.Time = f.Time.Add(d) }

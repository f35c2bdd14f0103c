// Package clock provides an abstraction for time operations to improve
// testability, plus a monotonic timestamp source used for entity audit
// fields. Instead of calling time.Now() directly, code uses the Clock
// interface which can be mocked in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface for time operations.
// This allows code to be tested with mock clocks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// stampLayout renders timestamps as RFC-3339 UTC with millisecond precision.
// Millisecond precision matches the 1 ms step used to recover from wall-clock
// regression, so rendered stamps stay strictly increasing.
const stampLayout = "2006-01-02T15:04:05.000Z"

// Monotonic produces strictly increasing timestamps within a process.
// If wall time regresses or repeats, the next stamp is advanced by one
// millisecond past the previous one. Safe for concurrent use.
type Monotonic struct {
	clock Clock
	mu    sync.Mutex
	last  time.Time
}

// NewMonotonic creates a Monotonic backed by the given clock.
// A nil clock defaults to RealClock.
func NewMonotonic(c Clock) *Monotonic {
	if c == nil {
		c = RealClock{}
	}
	return &Monotonic{clock: c}
}

// Now returns a strictly increasing UTC time truncated to milliseconds.
func (m *Monotonic) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now().UTC().Truncate(time.Millisecond)
	if !now.After(m.last) {
		now = m.last.Add(time.Millisecond)
	}
	m.last = now
	return now
}

// Stamp returns the next monotonic timestamp rendered as an ISO-8601 UTC
// string. Lexicographic order of stamps matches chronological order.
func (m *Monotonic) Stamp() string {
	return m.Now().Format(stampLayout)
}

// ParseStamp parses a timestamp previously produced by Stamp.
func ParseStamp(s string) (time.Time, error) {
	return time.Parse(stampLayout, s)
}

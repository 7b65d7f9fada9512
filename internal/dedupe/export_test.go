package dedupe

import "time"

// NewSetWithClock exposes the clock seam to external tests.
func NewSetWithClock(capacity int, ttl time.Duration, now func() time.Time) *Set {
	return newSet(capacity, ttl, now)
}

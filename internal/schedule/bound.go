package schedule

import "time"

// Business constants for event finish times. They are fixed and not exposed
// through configuration.
const (
	MinimumLead = 10 * time.Minute
	DefaultLead = 30 * time.Minute
	ClampMargin = 5 * time.Minute
	AdvisoryTTL = 3 * time.Second
)

// MinimumAllowedInstant returns the earliest instant an event may finish at,
// relative to now. Callers must evaluate it at every validation point.
func MinimumAllowedInstant(now time.Time) time.Time {
	return now.Add(MinimumLead)
}

// IsValidFuture reports whether t lies strictly after the minimum bound.
func IsValidFuture(t, now time.Time) bool {
	return t.After(MinimumAllowedInstant(now))
}

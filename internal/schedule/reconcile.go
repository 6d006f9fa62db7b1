package schedule

import "time"

// SelectDate places a newly picked calendar day on the clock and returns an
// instant strictly after MinimumAllowedInstant(now). Only the year, month and
// day of candidate (in loc) are used.
func SelectDate(now time.Time, loc *time.Location, candidate time.Time, previous *time.Time) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	bound := MinimumAllowedInstant(now)
	b := bound.In(loc)
	y, m, d := candidate.In(loc).Date()

	onBoundClock := time.Date(y, m, d, b.Hour(), b.Minute(), b.Second(), b.Nanosecond(), loc)

	var result time.Time

	switch {
	case onBoundClock.Before(bound):
		// a day that is already over
		result = bound
	case previous != nil:
		p := previous.In(loc)
		result = time.Date(y, m, d, p.Hour(), p.Minute(), 0, 0, loc)
	default:
		def := now.Add(DefaultLead).In(loc)
		result = time.Date(y, m, d, def.Hour(), def.Minute(), 0, 0, loc)
	}

	if !result.After(bound) {
		result = bound.Add(ClampMargin)
	}

	return result
}

// ApplyTime sets the clock time of base. Out of range values fail with a
// *RangeError. A composed instant that is not past the minimum bound is moved
// to bound+ClampMargin and adjusted is reported as true.
func ApplyTime(now time.Time, loc *time.Location, base time.Time, hours, minutes int) (result time.Time, adjusted bool, err error) {
	if hours < 0 || hours > 23 {
		return time.Time{}, false, hoursRangeError(hours)
	}

	if minutes < 0 || minutes > 59 {
		return time.Time{}, false, minutesRangeError(minutes)
	}

	if loc == nil {
		loc = time.UTC
	}

	y, m, d := base.In(loc).Date()
	composed := time.Date(y, m, d, hours, minutes, 0, 0, loc)

	bound := MinimumAllowedInstant(now)

	if !composed.After(bound) {
		return bound.Add(ClampMargin), true, nil
	}

	return composed, false, nil
}

package schedule

import "time"

// Picker holds the finish instant chosen for one draft. It is not safe for
// concurrent use; the owning draft serialises access.
type Picker struct {
	now      func() time.Time
	loc      *time.Location
	instant  *time.Time
	advisory *Advisory
}

func NewPicker(now func() time.Time, loc *time.Location, initial *time.Time) *Picker {
	if now == nil {
		now = time.Now
	}

	if loc == nil {
		loc = time.UTC
	}

	p := &Picker{
		now:      now,
		loc:      loc,
		advisory: NewAdvisory(AdvisoryTTL),
	}

	if initial != nil && !initial.IsZero() {
		t := *initial
		p.instant = &t
	}

	return p
}

func (p *Picker) Instant() (time.Time, bool) {
	if p.instant == nil {
		return time.Time{}, false
	}

	return *p.instant, true
}

func (p *Picker) Location() *time.Location {
	return p.loc
}

func (p *Picker) Advisory() string {
	return p.advisory.Message()
}

func (p *Picker) SelectDate(day time.Time) time.Time {
	t := SelectDate(p.now(), p.loc, day, p.instant)
	p.instant = &t
	p.advisory.Cancel()

	return t
}

func (p *Picker) ApplyTime(hours, minutes int) (time.Time, error) {
	if p.instant == nil {
		return time.Time{}, ErrNoDateSelected
	}

	t, adjusted, err := ApplyTime(p.now(), p.loc, *p.instant, hours, minutes)
	if err != nil {
		return time.Time{}, err
	}

	p.instant = &t

	if adjusted {
		p.advisory.Show(AdjustedMessage)
	} else {
		p.advisory.Cancel()
	}

	return t, nil
}

func (p *Picker) Clear() {
	p.instant = nil
	p.advisory.Cancel()
}

// Close releases the advisory timer. The picker stays readable.
func (p *Picker) Close() {
	p.advisory.Cancel()
}

package engine

import (
	"time"

	"github.com/hybridhq/reminder-engine/record"
)

// =============================================================================
// REFERENCE CLOCK - deployment timezone + injected "now"
// =============================================================================

// ReferenceZone is the deployment's fixed calendar timezone. Every "today"
// in the rules is this zone's local date, never the UTC date: near midnight
// UTC the two disagree and eligibility would be off by a day.
const ReferenceZone = "Australia/Sydney"

// Clock carries an explicit instant and zone so every evaluator and
// accounting call is deterministic under test. Nothing in this module reads
// ambient system time.
type Clock struct {
	Now  time.Time
	Zone *time.Location
}

// NewClock pins the instant to the reference zone.
func NewClock(now time.Time) Clock {
	loc, err := time.LoadLocation(ReferenceZone)
	if err != nil {
		// The zone name is a compile-time constant; a failed load means a
		// broken tzdata install and there is no correct fallback.
		panic("engine: cannot load reference timezone: " + err.Error())
	}
	return Clock{Now: now, Zone: loc}
}

// NewClockIn pins the instant to an arbitrary zone (tests).
func NewClockIn(now time.Time, zone *time.Location) Clock {
	return Clock{Now: now, Zone: zone}
}

func (c Clock) local() time.Time {
	return c.Now.In(c.Zone)
}

// Today returns the zone-local calendar date key.
func (c Clock) Today() record.DateKey {
	return c.local().Format("2006-01-02")
}

func (c Clock) Weekday() time.Weekday {
	return c.local().Weekday()
}

func (c Clock) IsWeekend() bool {
	wd := c.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Month returns the zone-local year and month.
func (c Clock) Month() (int, time.Month) {
	l := c.local()
	return l.Year(), l.Month()
}

// LocalHourMinute returns the zone-local wall-clock time of day.
func (c Clock) LocalHourMinute() (int, int) {
	l := c.local()
	return l.Hour(), l.Minute()
}

// =============================================================================
// MONTH ITERATION
// =============================================================================

// DaysOfMonth calls fn for each calendar day of the month with its date key
// and weekday.
func DaysOfMonth(year int, month time.Month, zone *time.Location, fn func(key record.DateKey, wd time.Weekday)) {
	d := time.Date(year, month, 1, 0, 0, 0, 0, zone)
	for d.Month() == month {
		fn(d.Format("2006-01-02"), d.Weekday())
		d = d.AddDate(0, 0, 1)
	}
}

// IsWeekdayDate reports whether wd is Monday through Friday.
func IsWeekdayDate(wd time.Weekday) bool {
	return wd != time.Saturday && wd != time.Sunday
}

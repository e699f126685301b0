// Package calendar enumerates 15-minute measurement slots and partitions a
// configured overall period into billing periods. All slot arithmetic runs
// in local civil time so daylight-saving transition days come out with
// their real-world slot counts (92 on spring-forward, 100 on fall-back).
package calendar

import (
	"fmt"
	"time"
)

// SlotDuration is the measurement interval length.
const SlotDuration = 15 * time.Minute

// Month is a calendar month, the unit of completeness checking.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// String formats the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// Start returns local midnight on the first day of the month.
func (m Month) Start(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// End returns local midnight on the first day of the following month.
func (m Month) End(loc *time.Location) time.Time {
	next := m.Next()
	return time.Date(next.Year, next.Month, 1, 0, 0, 0, 0, loc)
}

// MonthsBetween enumerates every month from start through end inclusive.
func MonthsBetween(start, end Month) ([]Month, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	var months []Month
	for m := start; !end.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months, nil
}

// ExpectedSlots enumerates every 15-minute slot boundary in the half-open
// local-time range [start, end). Both arguments are interpreted as civil
// dates in loc; their clock parts are ignored. Slot boundaries are absolute
// instants, so the skipped hour of a spring-forward day is absent and the
// repeated hour of a fall-back day appears twice.
func ExpectedSlots(start, end time.Time, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		return nil, ErrNilLocation
	}
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	slots := make([]time.Time, 0, int(to.Sub(from)/SlotDuration))
	for t := from; t.Before(to); t = t.Add(SlotDuration) {
		slots = append(slots, t)
	}
	return slots, nil
}

// MonthSlots enumerates every expected slot of a calendar month.
func MonthSlots(m Month, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		return nil, ErrNilLocation
	}
	return ExpectedSlots(m.Start(loc), m.End(loc), loc)
}

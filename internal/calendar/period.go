package calendar

// IntervalKind selects how months are grouped into billing periods.
type IntervalKind string

const (
	IntervalMonthly    IntervalKind = "monthly"
	IntervalQuarterly  IntervalKind = "quarterly"
	IntervalSemiAnnual IntervalKind = "semi_annual"
	IntervalAnnual     IntervalKind = "annual"
)

// Valid reports whether the kind is one of the supported intervals.
func (k IntervalKind) Valid() bool {
	switch k {
	case IntervalMonthly, IntervalQuarterly, IntervalSemiAnnual, IntervalAnnual:
		return true
	}
	return false
}

// BillingPeriod is one or more consecutive months billed together.
type BillingPeriod struct {
	Months []Month
}

// Start returns the first month of the period.
func (p BillingPeriod) Start() Month { return p.Months[0] }

// End returns the last month of the period.
func (p BillingPeriod) End() Month { return p.Months[len(p.Months)-1] }

// Label formats the period as YYYY-MM or YYYY-MM..YYYY-MM.
func (p BillingPeriod) Label() string {
	if len(p.Months) == 1 {
		return p.Start().String()
	}
	return p.Start().String() + ".." + p.End().String()
}

// Partition splits [start, end] (inclusive months) into calendar-aligned
// billing periods of the given kind. A bucket reaching past end is
// truncated to end, never extended; the leading bucket may likewise start
// mid-quarter or mid-year when start is not aligned.
func Partition(start, end Month, kind IntervalKind) ([]BillingPeriod, error) {
	if !kind.Valid() {
		return nil, ErrUnknownIntervalKind
	}
	months, err := MonthsBetween(start, end)
	if err != nil {
		return nil, err
	}

	var periods []BillingPeriod
	var current []Month
	var currentKey [2]int
	for _, m := range months {
		key := bucketKey(m, kind)
		if len(current) > 0 && key != currentKey {
			periods = append(periods, BillingPeriod{Months: current})
			current = nil
		}
		current = append(current, m)
		currentKey = key
	}
	if len(current) > 0 {
		periods = append(periods, BillingPeriod{Months: current})
	}
	return periods, nil
}

func bucketKey(m Month, kind IntervalKind) [2]int {
	switch kind {
	case IntervalQuarterly:
		return [2]int{m.Year, (int(m.Month) - 1) / 3}
	case IntervalSemiAnnual:
		if m.Month <= 6 {
			return [2]int{m.Year, 0}
		}
		return [2]int{m.Year, 1}
	case IntervalAnnual:
		return [2]int{m.Year, 0}
	default: // monthly
		return [2]int{m.Year, int(m.Month)}
	}
}

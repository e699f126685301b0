// Package quality decides, per calendar month, whether the interval data
// of every physical meter is complete and gap-free. Incomplete months are
// reported, never raised: the verdict is a structured result the pipeline
// uses to skip the month.
package quality

import (
	"fmt"
	"sort"
	"time"

	"vzev-billing/internal/calendar"
	masterdata "vzev-billing/internal/masterdata/domain"
	metering "vzev-billing/internal/metering/domain"
)

// MonthStatus is the completeness verdict for one month.
type MonthStatus struct {
	Month    calendar.Month
	Billable bool
	// Missing counts absent slots per physical meter external id.
	Missing map[string]int
	// Gaps lists the absent slot starts per meter, ascending.
	Gaps map[string][]time.Time
}

// Reason summarises why the month is not billable, empty when it is.
func (s MonthStatus) Reason() string {
	if s.Billable {
		return ""
	}
	ids := make([]string, 0, len(s.Missing))
	for id := range s.Missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %d missing slot(s)", id, s.Missing[id]))
	}
	out := "incomplete interval data"
	for _, p := range parts {
		out += "; " + p
	}
	return out
}

// CheckMonth verifies that every physical meter has a valid reading for
// every expected slot of the month. Virtual meters never gate. The check
// is pure: identical inputs yield an identical verdict.
//
// Duplicate readings for the same (meter, slot) are a setup defect, not a
// data-quality gap, and abort with ErrDuplicateReading.
func CheckMonth(
	month calendar.Month,
	loc *time.Location,
	meters []masterdata.Meter,
	readingsByMeter map[string][]metering.IntervalReading,
) (MonthStatus, error) {
	status := MonthStatus{
		Month:    month,
		Billable: true,
		Missing:  make(map[string]int),
		Gaps:     make(map[string][]time.Time),
	}

	expected, err := calendar.MonthSlots(month, loc)
	if err != nil {
		return MonthStatus{}, err
	}

	for _, meter := range meters {
		if !meter.IsPhysical() {
			continue
		}

		present := make(map[int64]struct{}, len(expected))
		for _, r := range readingsByMeter[meter.ExternalID] {
			if !r.Valid() {
				continue
			}
			key := r.SlotStart.Unix()
			if _, dup := present[key]; dup {
				return MonthStatus{}, fmt.Errorf("%w: meter %s at %s",
					metering.ErrDuplicateReading, meter.ExternalID, r.SlotStart.Format(time.RFC3339))
			}
			present[key] = struct{}{}
		}

		var gaps []time.Time
		for _, slot := range expected {
			if _, ok := present[slot.Unix()]; !ok {
				gaps = append(gaps, slot)
			}
		}
		if len(gaps) > 0 {
			status.Billable = false
			status.Missing[meter.ExternalID] = len(gaps)
			status.Gaps[meter.ExternalID] = gaps
		}
	}

	return status, nil
}

// crossCheckToleranceKWh bounds the drift allowed between the virtual
// grid-level meters and the allocation totals before a warning is raised.
const crossCheckToleranceKWh = 0.05

// CrossCheckVirtual compares the virtual grid-level meter totals of a
// month against the allocation output. Mismatches are warnings only; the
// virtual meters are a sanity net, not a gate.
func CrossCheckVirtual(month calendar.Month, virtualConsumptionKWh, virtualProductionKWh, gridDrawKWh, exportKWh float64) []string {
	var warnings []string
	if diff := virtualConsumptionKWh - gridDrawKWh; diff > crossCheckToleranceKWh || diff < -crossCheckToleranceKWh {
		warnings = append(warnings, fmt.Sprintf(
			"%s: virtual consumption %.3f kWh deviates from allocated grid draw %.3f kWh",
			month, virtualConsumptionKWh, gridDrawKWh))
	}
	if diff := virtualProductionKWh - exportKWh; diff > crossCheckToleranceKWh || diff < -crossCheckToleranceKWh {
		warnings = append(warnings, fmt.Sprintf(
			"%s: virtual production %.3f kWh deviates from allocated export %.3f kWh",
			month, virtualProductionKWh, exportKWh))
	}
	return warnings
}

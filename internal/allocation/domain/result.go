package allocation

import (
	"time"

	"github.com/shopspring/decimal"

	"vzev-billing/internal/calendar"
)

// MeterEnergy is one meter's contribution to a slot, consumption or
// production depending on the meter role.
type MeterEnergy struct {
	MeterID  string
	MemberID string
	KWh      decimal.Decimal
}

// MemberSlot is the allocation outcome for one member in one slot.
type MemberSlot struct {
	MemberID string
	Slot     time.Time
	// ConsumptionKWh is the member's physical consumption in the slot.
	ConsumptionKWh decimal.Decimal
	// ProductionKWh is the member's physical production in the slot.
	ProductionKWh decimal.Decimal
	// LocalKWh is the member's share of locally consumed solar energy.
	LocalKWh decimal.Decimal
	// GridKWh is the consumption remainder drawn from the grid.
	GridKWh decimal.Decimal
	// ExportKWh is the member's attributed share of the surplus export.
	ExportKWh decimal.Decimal
	// SoldLocalKWh is the portion of the member's production consumed by
	// other members, the basis of local-sale revenue.
	SoldLocalKWh decimal.Decimal
}

// SlotAllocation is the full allocation picture of one slot.
type SlotAllocation struct {
	Slot                time.Time
	TotalConsumptionKWh decimal.Decimal
	TotalProductionKWh  decimal.Decimal
	LocallyConsumedKWh  decimal.Decimal
	SurplusExportKWh    decimal.Decimal
	// Members is sorted by member id for reproducible output.
	Members []MemberSlot
}

// MemberTotals accumulates a member's allocation over a month.
type MemberTotals struct {
	MemberID       string
	ConsumptionKWh decimal.Decimal
	ProductionKWh  decimal.Decimal
	LocalKWh       decimal.Decimal
	GridKWh        decimal.Decimal
	ExportKWh      decimal.Decimal
	SoldLocalKWh   decimal.Decimal
}

func (t *MemberTotals) add(ms MemberSlot) {
	t.ConsumptionKWh = t.ConsumptionKWh.Add(ms.ConsumptionKWh)
	t.ProductionKWh = t.ProductionKWh.Add(ms.ProductionKWh)
	t.LocalKWh = t.LocalKWh.Add(ms.LocalKWh)
	t.GridKWh = t.GridKWh.Add(ms.GridKWh)
	t.ExportKWh = t.ExportKWh.Add(ms.ExportKWh)
	t.SoldLocalKWh = t.SoldLocalKWh.Add(ms.SoldLocalKWh)
}

// MonthAllocation is the recomputable allocation result of one billable
// month. It has no identity of its own: the same readings always produce
// the same result.
type MonthAllocation struct {
	Month  calendar.Month
	Slots  []SlotAllocation
	Totals map[string]*MemberTotals
}

// GridDrawKWh sums the grid draw of all members over the month.
func (a *MonthAllocation) GridDrawKWh() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range a.Totals {
		sum = sum.Add(t.GridKWh)
	}
	return sum
}

// ExportKWh sums the surplus export of all members over the month.
func (a *MonthAllocation) ExportKWh() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range a.Totals {
		sum = sum.Add(t.ExportKWh)
	}
	return sum
}

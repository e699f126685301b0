// Package billing turns validated month allocations into per-member bills
// for a billing period. Bills are derived values: recomputing over the
// same allocations yields an identical bill.
package billing

import (
	"github.com/shopspring/decimal"

	allocation "vzev-billing/internal/allocation/domain"
	"vzev-billing/internal/calendar"
	masterdata "vzev-billing/internal/masterdata/domain"
)

// moneyPlaces is the rounding precision for currency amounts.
const moneyPlaces = 2

// Aggregate sums a member's allocated energy over every month of the
// period and applies the configured rates. Every constituent month must
// be present in months; a missing month means the period is not billable
// and ErrNonBillablePeriod is returned.
func Aggregate(
	member masterdata.Member,
	period calendar.BillingPeriod,
	months map[calendar.Month]*allocation.MonthAllocation,
	rates Rates,
) (*Bill, error) {
	if len(period.Months) == 0 {
		return nil, ErrEmptyPeriod
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}

	totals := allocation.MemberTotals{MemberID: member.ID}
	for _, month := range period.Months {
		alloc, ok := months[month]
		if !ok || alloc == nil {
			return nil, ErrNonBillablePeriod
		}
		if mt, ok := alloc.Totals[member.ID]; ok {
			totals.ConsumptionKWh = totals.ConsumptionKWh.Add(mt.ConsumptionKWh)
			totals.ProductionKWh = totals.ProductionKWh.Add(mt.ProductionKWh)
			totals.LocalKWh = totals.LocalKWh.Add(mt.LocalKWh)
			totals.GridKWh = totals.GridKWh.Add(mt.GridKWh)
			totals.ExportKWh = totals.ExportKWh.Add(mt.ExportKWh)
			totals.SoldLocalKWh = totals.SoldLocalKWh.Add(mt.SoldLocalKWh)
		}
	}

	// The host owns the solar installation: its own local consumption is
	// free. Everyone else pays the collective local rate.
	localRate := rates.LocalRate
	if member.IsHost {
		localRate = decimal.Zero
	}

	bill := &Bill{
		MemberID:   member.ID,
		MemberName: member.FullName(),
		IsHost:     member.IsHost,
		IsProducer: member.IsProducer(),
		Period:     period,
		Currency:   rates.Currency,

		ConsumptionKWh: totals.ConsumptionKWh,
		LocalKWh:       totals.LocalKWh,
		GridKWh:        totals.GridKWh,
		ProductionKWh:  totals.ProductionKWh,
		SoldLocalKWh:   totals.SoldLocalKWh,
		ExportKWh:      totals.ExportKWh,

		LocalRate:     localRate,
		LocalSellRate: rates.LocalRate,
		BKWBuyRate:    rates.BKWBuyRate,
		BKWSellRate:   rates.BKWSellRate,
	}

	bill.LocalCost = totals.LocalKWh.Mul(localRate).Round(moneyPlaces)
	bill.GridCost = totals.GridKWh.Mul(rates.BKWBuyRate).Round(moneyPlaces)
	bill.TotalCost = bill.LocalCost.Add(bill.GridCost)

	if bill.IsProducer {
		// Revenue accrues only on production consumed by other members
		// plus the attributed export share; self-consumption is not a sale.
		bill.LocalRevenue = totals.SoldLocalKWh.Mul(rates.LocalRate).Round(moneyPlaces)
		bill.ExportRevenue = totals.ExportKWh.Mul(rates.BKWSellRate).Round(moneyPlaces)
		bill.TotalRevenue = bill.LocalRevenue.Add(bill.ExportRevenue)
	}

	bill.NetAmount = bill.TotalCost.Sub(bill.TotalRevenue)
	return bill, nil
}

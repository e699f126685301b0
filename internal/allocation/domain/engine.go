// Package allocation distributes per-slot solar production across the
// collective. Arithmetic runs on decimals; rounding remainders are pushed
// to the largest-share holder so every slot conserves energy exactly.
package allocation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"vzev-billing/internal/calendar"
	masterdata "vzev-billing/internal/masterdata/domain"
	metering "vzev-billing/internal/metering/domain"
)

// AllocateSlot apportions one slot. Consumption shares are proportional
// to demand, capped by total production; surplus export is attributed to
// producers by production share. Ties on the largest share are broken by
// the smaller meter external id.
func AllocateSlot(slot time.Time, consumptions, productions []MeterEnergy) (SlotAllocation, error) {
	for _, group := range [][]MeterEnergy{consumptions, productions} {
		for _, e := range group {
			if e.KWh.IsNegative() {
				return SlotAllocation{}, fmt.Errorf("%w: meter %s at %s", ErrNegativeEnergy, e.MeterID, slot.Format(time.RFC3339))
			}
		}
	}

	totalCons := sumKWh(consumptions)
	totalProd := sumKWh(productions)

	locallyConsumed := decimal.Min(totalProd, totalCons)
	if totalCons.IsZero() {
		locallyConsumed = decimal.Zero
	}
	surplus := totalProd.Sub(locallyConsumed)

	localShares, err := proportionalShares(consumptions, totalCons, locallyConsumed)
	if err != nil {
		return SlotAllocation{}, err
	}
	exportShares, err := proportionalShares(productions, totalProd, surplus)
	if err != nil {
		return SlotAllocation{}, err
	}

	out := SlotAllocation{
		Slot:                slot,
		TotalConsumptionKWh: totalCons,
		TotalProductionKWh:  totalProd,
		LocallyConsumedKWh:  locallyConsumed,
		SurplusExportKWh:    surplus,
	}

	byMember := make(map[string]*MemberSlot)
	memberAt := func(id string) *MemberSlot {
		ms, ok := byMember[id]
		if !ok {
			ms = &MemberSlot{MemberID: id, Slot: slot}
			byMember[id] = ms
		}
		return ms
	}

	for i, c := range consumptions {
		ms := memberAt(c.MemberID)
		ms.ConsumptionKWh = ms.ConsumptionKWh.Add(c.KWh)
		ms.LocalKWh = ms.LocalKWh.Add(localShares[i])
		ms.GridKWh = ms.GridKWh.Add(c.KWh.Sub(localShares[i]))
	}
	for i, p := range productions {
		ms := memberAt(p.MemberID)
		ms.ProductionKWh = ms.ProductionKWh.Add(p.KWh)
		ms.ExportKWh = ms.ExportKWh.Add(exportShares[i])
	}

	// Local-sale attribution: of the locally consumed energy, each
	// producer supplied its production share; the part landing on the
	// producer's own consumption is self-consumption, not a sale.
	if totalProd.IsPositive() {
		for _, ms := range byMember {
			if !ms.ProductionKWh.IsPositive() {
				continue
			}
			soldPool := locallyConsumed.Sub(ms.LocalKWh)
			ms.SoldLocalKWh = ms.ProductionKWh.Mul(soldPool).Div(totalProd)
		}
	}

	for _, ms := range byMember {
		out.Members = append(out.Members, *ms)
	}
	sort.Slice(out.Members, func(i, j int) bool {
		return out.Members[i].MemberID < out.Members[j].MemberID
	})

	if err := checkBalance(out); err != nil {
		return SlotAllocation{}, err
	}
	return out, nil
}

// AllocateMonth runs the slot allocation over every expected slot of a
// billable month. Readings must already have passed the completeness
// check; a missing reading contributes zero energy.
func AllocateMonth(
	month calendar.Month,
	loc *time.Location,
	meters []masterdata.Meter,
	readingsByMeter map[string][]metering.IntervalReading,
) (*MonthAllocation, error) {
	slots, err := calendar.MonthSlots(month, loc)
	if err != nil {
		return nil, err
	}

	var consumptionMeters, productionMeters []masterdata.Meter
	for _, meter := range meters {
		if !meter.IsPhysical() {
			continue
		}
		if meter.IsProduction {
			productionMeters = append(productionMeters, meter)
		} else {
			consumptionMeters = append(consumptionMeters, meter)
		}
	}
	sort.Slice(consumptionMeters, func(i, j int) bool {
		return consumptionMeters[i].ExternalID < consumptionMeters[j].ExternalID
	})
	sort.Slice(productionMeters, func(i, j int) bool {
		return productionMeters[i].ExternalID < productionMeters[j].ExternalID
	})

	index := make(map[string]map[int64]metering.IntervalReading, len(meters))
	for _, meter := range meters {
		bySlot := make(map[int64]metering.IntervalReading)
		for _, r := range readingsByMeter[meter.ExternalID] {
			if r.Valid() {
				bySlot[r.SlotStart.Unix()] = r
			}
		}
		index[meter.ExternalID] = bySlot
	}

	result := &MonthAllocation{
		Month:  month,
		Slots:  make([]SlotAllocation, 0, len(slots)),
		Totals: make(map[string]*MemberTotals),
	}

	for _, slot := range slots {
		key := slot.Unix()

		consumptions := make([]MeterEnergy, 0, len(consumptionMeters))
		for _, meter := range consumptionMeters {
			r := index[meter.ExternalID][key]
			consumptions = append(consumptions, MeterEnergy{
				MeterID:  meter.ExternalID,
				MemberID: meter.MemberID,
				KWh:      decimal.NewFromFloat(r.ConsumptionKWh),
			})
		}
		productions := make([]MeterEnergy, 0, len(productionMeters))
		for _, meter := range productionMeters {
			r := index[meter.ExternalID][key]
			productions = append(productions, MeterEnergy{
				MeterID:  meter.ExternalID,
				MemberID: meter.MemberID,
				KWh:      decimal.NewFromFloat(r.ProductionKWh),
			})
		}

		slotAlloc, err := AllocateSlot(slot, consumptions, productions)
		if err != nil {
			return nil, fmt.Errorf("month %s: %w", month, err)
		}
		result.Slots = append(result.Slots, slotAlloc)

		for _, ms := range slotAlloc.Members {
			totals, ok := result.Totals[ms.MemberID]
			if !ok {
				totals = &MemberTotals{MemberID: ms.MemberID}
				result.Totals[ms.MemberID] = totals
			}
			totals.add(ms)
		}
	}

	return result, nil
}

// proportionalShares splits target across entries in proportion to their
// energy. The division remainder lands on the largest entry; on identical
// largest entries the smallest meter external id wins, keeping the
// outcome reproducible to the cent.
func proportionalShares(entries []MeterEnergy, total, target decimal.Decimal) ([]decimal.Decimal, error) {
	shares := make([]decimal.Decimal, len(entries))
	for i := range shares {
		shares[i] = decimal.Zero
	}
	if target.IsZero() || !total.IsPositive() {
		return shares, nil
	}

	// target == total means every entry keeps exactly its own energy.
	if target.Equal(total) {
		for i, e := range entries {
			shares[i] = e.KWh
		}
		return shares, nil
	}

	largest := -1
	sum := decimal.Zero
	for i, e := range entries {
		if e.KWh.IsZero() {
			continue
		}
		shares[i] = target.Mul(e.KWh).Div(total)
		sum = sum.Add(shares[i])
		if largest < 0 ||
			shares[i].GreaterThan(shares[largest]) ||
			(shares[i].Equal(shares[largest]) && e.MeterID < entries[largest].MeterID) {
			largest = i
		}
	}
	if largest >= 0 {
		shares[largest] = shares[largest].Add(target.Sub(sum))
	}
	return shares, nil
}

func sumKWh(entries []MeterEnergy) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.KWh)
	}
	return sum
}

func checkBalance(s SlotAllocation) error {
	localSum := decimal.Zero
	exportSum := decimal.Zero
	for _, ms := range s.Members {
		localSum = localSum.Add(ms.LocalKWh)
		exportSum = exportSum.Add(ms.ExportKWh)
	}
	if !localSum.Equal(s.LocallyConsumedKWh) {
		return fmt.Errorf("%w: local %s != %s at %s",
			ErrEnergyImbalance, localSum, s.LocallyConsumedKWh, s.Slot.Format(time.RFC3339))
	}
	if !exportSum.Equal(s.SurplusExportKWh) {
		return fmt.Errorf("%w: export %s != %s at %s",
			ErrEnergyImbalance, exportSum, s.SurplusExportKWh, s.Slot.Format(time.RFC3339))
	}
	return nil
}

// Package interfaces renders finished bills for external consumers: flat
// key-value rows (CSV), PDF and XLSX. No billing logic lives here.
package interfaces

import (
	"encoding/csv"
	"io"
	"strconv"

	billing "vzev-billing/internal/billing/domain"
)

const (
	energyPlaces = 3
	ratePlaces   = 4
	moneyPlaces  = 2
)

// RowHeader returns the column names of the flat export row, in order.
func RowHeader() []string {
	return []string{
		"period",
		"member_id",
		"member_name",
		"is_host",
		"is_producer",
		"total_consumption_kwh",
		"local_consumption_kwh",
		"grid_consumption_kwh",
		"local_rate",
		"bkw_buy_rate",
		"local_cost",
		"grid_cost",
		"total_cost",
		"total_production_kwh",
		"local_sell_kwh",
		"grid_export_kwh",
		"local_sell_rate",
		"bkw_sell_rate",
		"local_sell_revenue",
		"export_revenue",
		"total_revenue",
		"net_amount",
		"currency",
	}
}

// BillRow flattens a bill into one export row matching RowHeader. The
// formatting is fixed (3 decimals for energy, 4 for rates, 2 for money)
// so identical bills serialize byte-identically.
func BillRow(b *billing.Bill) []string {
	return []string{
		b.Period.Label(),
		b.MemberID,
		b.MemberName,
		strconv.FormatBool(b.IsHost),
		strconv.FormatBool(b.IsProducer),
		b.ConsumptionKWh.StringFixed(energyPlaces),
		b.LocalKWh.StringFixed(energyPlaces),
		b.GridKWh.StringFixed(energyPlaces),
		b.LocalRate.StringFixed(ratePlaces),
		b.BKWBuyRate.StringFixed(ratePlaces),
		b.LocalCost.StringFixed(moneyPlaces),
		b.GridCost.StringFixed(moneyPlaces),
		b.TotalCost.StringFixed(moneyPlaces),
		b.ProductionKWh.StringFixed(energyPlaces),
		b.SoldLocalKWh.StringFixed(energyPlaces),
		b.ExportKWh.StringFixed(energyPlaces),
		b.LocalSellRate.StringFixed(ratePlaces),
		b.BKWSellRate.StringFixed(ratePlaces),
		b.LocalRevenue.StringFixed(moneyPlaces),
		b.ExportRevenue.StringFixed(moneyPlaces),
		b.TotalRevenue.StringFixed(moneyPlaces),
		b.NetAmount.StringFixed(moneyPlaces),
		b.Currency,
	}
}

// WriteCSV writes the header plus one row per bill.
func WriteCSV(w io.Writer, bills []*billing.Bill) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(RowHeader()); err != nil {
		return err
	}
	for _, bill := range bills {
		if err := writer.Write(BillRow(bill)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

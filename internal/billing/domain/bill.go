package billing

import (
	"github.com/shopspring/decimal"

	"vzev-billing/internal/calendar"
)

// Rates holds the configured flat rates of the collective, in currency
// units per kWh.
type Rates struct {
	// LocalRate is charged for locally consumed solar energy and credited
	// to producers for energy sold inside the collective.
	LocalRate decimal.Decimal
	// BKWBuyRate is charged for energy drawn from the grid.
	BKWBuyRate decimal.Decimal
	// BKWSellRate is credited for surplus energy exported to the grid.
	BKWSellRate decimal.Decimal
	Currency    string
}

// Validate rejects negative rates.
func (r Rates) Validate() error {
	if r.LocalRate.IsNegative() || r.BKWBuyRate.IsNegative() || r.BKWSellRate.IsNegative() {
		return ErrNegativeRate
	}
	return nil
}

// Bill is the settled cost/revenue breakdown of one member over one
// billing period. All money values are rounded to 0.01; NetAmount is
// TotalCost minus TotalRevenue, so a positive net means the member owes
// the collective and a negative net means the collective owes the member.
type Bill struct {
	MemberID   string
	MemberName string
	IsHost     bool
	IsProducer bool
	Period     calendar.BillingPeriod
	Currency   string

	// Energy totals over the period, in kWh.
	ConsumptionKWh decimal.Decimal
	LocalKWh       decimal.Decimal
	GridKWh        decimal.Decimal
	ProductionKWh  decimal.Decimal
	SoldLocalKWh   decimal.Decimal
	ExportKWh      decimal.Decimal

	// Applied rates. LocalRate is zero for the host; LocalSellRate is the
	// collective rate producers earn on local sales.
	LocalRate     decimal.Decimal
	LocalSellRate decimal.Decimal
	BKWBuyRate    decimal.Decimal
	BKWSellRate   decimal.Decimal

	// Cost side.
	LocalCost decimal.Decimal
	GridCost  decimal.Decimal
	TotalCost decimal.Decimal

	// Revenue side, producers only.
	LocalRevenue  decimal.Decimal
	ExportRevenue decimal.Decimal
	TotalRevenue  decimal.Decimal

	NetAmount decimal.Decimal
}

package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	billing "vzev-billing/internal/billing/domain"
)

// BuildBillPDF renders one member bill as a PDF document.
func BuildBillPDF(b *billing.Bill) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Energy Bill")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Member: %s", b.MemberName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s", b.Period.Label()))
	pdf.Ln(5)
	role := "member"
	if b.IsHost {
		role = "host"
	}
	if b.IsProducer {
		role += ", producer"
	}
	pdf.Cell(0, 6, fmt.Sprintf("Role: %s", role))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Position", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, "Energy (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Rate", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, fmt.Sprintf("Amount (%s)", b.Currency), "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	row := func(position, energy, rate, amount string) {
		pdf.CellFormat(70, 6, position, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, energy, "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, rate, "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, amount, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	row("Local solar consumption",
		b.LocalKWh.StringFixed(energyPlaces),
		b.LocalRate.StringFixed(ratePlaces),
		b.LocalCost.StringFixed(moneyPlaces))
	row("Grid consumption",
		b.GridKWh.StringFixed(energyPlaces),
		b.BKWBuyRate.StringFixed(ratePlaces),
		b.GridCost.StringFixed(moneyPlaces))
	row("Total cost", b.ConsumptionKWh.StringFixed(energyPlaces), "", b.TotalCost.StringFixed(moneyPlaces))

	if b.IsProducer {
		pdf.Ln(2)
		row("Local solar sold",
			b.SoldLocalKWh.StringFixed(energyPlaces),
			b.LocalSellRate.StringFixed(ratePlaces),
			b.LocalRevenue.StringFixed(moneyPlaces))
		row("Grid export",
			b.ExportKWh.StringFixed(energyPlaces),
			b.BKWSellRate.StringFixed(ratePlaces),
			b.ExportRevenue.StringFixed(moneyPlaces))
		row("Total revenue", b.ProductionKWh.StringFixed(energyPlaces), "", b.TotalRevenue.StringFixed(moneyPlaces))
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Net amount: %s %s", b.NetAmount.StringFixed(moneyPlaces), b.Currency))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

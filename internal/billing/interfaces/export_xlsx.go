package interfaces

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	billing "vzev-billing/internal/billing/domain"
)

// BuildBillsXLSX renders all bills of a run into one workbook: a summary
// sheet mirroring the flat export rows plus one sheet per member.
func BuildBillsXLSX(bills []*billing.Bill) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	f.SetSheetName("Sheet1", summarySheet)

	for col, name := range RowHeader() {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(summarySheet, cell, name)
	}
	for i, bill := range bills {
		for col, value := range BillRow(bill) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(summarySheet, cell, value)
		}
	}

	for _, bill := range bills {
		sheet := memberSheetName(bill)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, "A1", "Energy Bill")
		_ = f.SetCellValue(sheet, "A3", "Member")
		_ = f.SetCellValue(sheet, "B3", bill.MemberName)
		_ = f.SetCellValue(sheet, "A4", "Period")
		_ = f.SetCellValue(sheet, "B4", bill.Period.Label())
		_ = f.SetCellValue(sheet, "A6", "Local solar consumption (kWh)")
		_ = f.SetCellValue(sheet, "B6", bill.LocalKWh.InexactFloat64())
		_ = f.SetCellValue(sheet, "A7", "Grid consumption (kWh)")
		_ = f.SetCellValue(sheet, "B7", bill.GridKWh.InexactFloat64())
		_ = f.SetCellValue(sheet, "A8", "Total cost")
		_ = f.SetCellValue(sheet, "B8", bill.TotalCost.InexactFloat64())
		row := 9
		if bill.IsProducer {
			_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Local solar sold (kWh)")
			_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), bill.SoldLocalKWh.InexactFloat64())
			row++
			_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Grid export (kWh)")
			_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), bill.ExportKWh.InexactFloat64())
			row++
			_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Total revenue")
			_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), bill.TotalRevenue.InexactFloat64())
			row++
		}
		row++
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("Net amount (%s)", bill.Currency))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), bill.NetAmount.InexactFloat64())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// memberSheetName keeps sheet names unique and inside the 31-char limit.
func memberSheetName(b *billing.Bill) string {
	name := b.MemberID + " " + b.Period.Start().String()
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

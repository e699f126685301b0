package interfaces

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "vzev-billing/internal/billing/domain"
	"vzev-billing/internal/calendar"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func sampleBill() *billing.Bill {
	return &billing.Bill{
		MemberID:   "tenant",
		MemberName: "Nina Keller",
		Period: calendar.BillingPeriod{Months: []calendar.Month{
			{Year: 2025, Month: time.June},
		}},
		Currency: "CHF",

		ConsumptionKWh: dec("10"),
		LocalKWh:       dec("6"),
		GridKWh:        dec("4"),

		LocalRate:     dec("0.2"),
		LocalSellRate: dec("0.2"),
		BKWBuyRate:    dec("0.3"),
		BKWSellRate:   dec("0.1"),

		LocalCost: dec("1.2"),
		GridCost:  dec("1.2"),
		TotalCost: dec("2.4"),
		NetAmount: dec("2.4"),
	}
}

func TestBillRowMatchesHeader(t *testing.T) {
	row := BillRow(sampleBill())
	header := RowHeader()
	if len(row) != len(header) {
		t.Fatalf("row width: got=%d want=%d", len(row), len(header))
	}

	byColumn := make(map[string]string, len(header))
	for i, name := range header {
		byColumn[name] = row[i]
	}

	want := map[string]string{
		"period":                "2025-06",
		"member_id":             "tenant",
		"member_name":           "Nina Keller",
		"is_host":               "false",
		"is_producer":           "false",
		"total_consumption_kwh": "10.000",
		"local_consumption_kwh": "6.000",
		"grid_consumption_kwh":  "4.000",
		"local_rate":            "0.2000",
		"bkw_buy_rate":          "0.3000",
		"local_cost":            "1.20",
		"grid_cost":             "1.20",
		"total_cost":            "2.40",
		"local_sell_rate":       "0.2000",
		"net_amount":            "2.40",
		"currency":              "CHF",
	}
	for column, value := range want {
		if got := byColumn[column]; got != value {
			t.Fatalf("column %s: got=%q want=%q", column, got, value)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []*billing.Bill{sampleBill()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got=%d want=2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "period,member_id,") {
		t.Fatalf("header line: got=%q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2025-06,tenant,Nina Keller,") {
		t.Fatalf("bill line: got=%q", lines[1])
	}

	// Same bill, same bytes.
	var again bytes.Buffer
	if err := WriteCSV(&again, []*billing.Bill{sampleBill()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), again.Bytes()) {
		t.Fatal("csv output not reproducible")
	}
}

func TestBuildBillPDF(t *testing.T) {
	data, err := BuildBillPDF(sampleBill())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("pdf magic missing, got %q", data[:min(8, len(data))])
	}
}

func TestBuildBillsXLSX(t *testing.T) {
	data, err := BuildBillsXLSX([]*billing.Bill{sampleBill()})
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("zip magic missing, got %q", data[:min(4, len(data))])
	}
}

package application

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "vzev-billing/internal/billing/domain"
	"vzev-billing/internal/billing/interfaces"
	"vzev-billing/internal/calendar"
	masterdata "vzev-billing/internal/masterdata/domain"
	metering "vzev-billing/internal/metering/domain"
	"vzev-billing/internal/metering/infrastructure/memory"
)

func zurich(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func testGraph(t *testing.T) *masterdata.Graph {
	t.Helper()
	graph, err := masterdata.NewGraph([]masterdata.Member{
		{
			ID: "host", FirstName: "Beat", LastName: "Huber", IsHost: true,
			Meters: []masterdata.Meter{
				{ExternalID: "CH100", MemberID: "host"},
				{ExternalID: "CH101", MemberID: "host", IsProduction: true},
				{ExternalID: "CH900", MemberID: "host", IsVirtual: true},
				{ExternalID: "CH901", MemberID: "host", IsVirtual: true, IsProduction: true},
			},
		},
		{
			ID: "tenant", FirstName: "Nina", LastName: "Keller",
			Meters: []masterdata.Meter{
				{ExternalID: "CH200", MemberID: "tenant"},
			},
		},
	})
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	return graph
}

func testRates() billing.Rates {
	return billing.Rates{
		LocalRate:   decimal.RequireFromString("0.20"),
		BKWBuyRate:  decimal.RequireFromString("0.30"),
		BKWSellRate: decimal.RequireFromString("0.10"),
		Currency:    "CHF",
	}
}

// seedMonth fills the store with a complete month: the host produces
// exactly what the collective consumes, so there is no grid draw and no
// export and the zero-valued virtual meters stay consistent.
func seedMonth(t *testing.T, store *memory.Store, month calendar.Month, loc *time.Location, skip map[string]int) {
	t.Helper()
	slots, err := calendar.MonthSlots(month, loc)
	if err != nil {
		t.Fatalf("month slots: %v", err)
	}

	var batch []metering.IntervalReading
	for i, slot := range slots {
		rows := []metering.IntervalReading{
			{MeterID: "CH100", SlotStart: slot, ConsumptionKWh: 0.4, Quality: metering.QualityMeasured},
			{MeterID: "CH101", SlotStart: slot, ProductionKWh: 1.0, Quality: metering.QualityMeasured},
			{MeterID: "CH200", SlotStart: slot, ConsumptionKWh: 0.6, Quality: metering.QualityMeasured},
		}
		for _, r := range rows {
			if skip != nil && skip[r.MeterID] == i {
				continue
			}
			batch = append(batch, r)
		}
	}
	if _, err := store.UpsertBatch(context.Background(), batch); err != nil {
		t.Fatalf("seed month %s: %v", month, err)
	}
}

func newTestPipeline(t *testing.T, store *memory.Store) *Pipeline {
	t.Helper()
	p, err := NewPipeline(store, testGraph(t), testRates(), zurich(t), nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestPipelineRunCompleteMonths(t *testing.T) {
	loc := zurich(t)
	store := memory.NewStore()
	jun := calendar.Month{Year: 2025, Month: time.June}
	jul := calendar.Month{Year: 2025, Month: time.July}
	seedMonth(t, store, jun, loc, nil)
	seedMonth(t, store, jul, loc, nil)

	result, err := newTestPipeline(t, store).Run(context.Background(), jun, jul, calendar.IntervalMonthly)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Excluded) != 0 {
		t.Fatalf("excluded months: got=%d want=0", len(result.Excluded))
	}
	// Two members, two monthly periods.
	if len(result.Bills) != 4 {
		t.Fatalf("bills: got=%d want=4", len(result.Bills))
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("warnings: got=%v want none", result.Warnings)
	}

	// Ordering is period start first, then member id.
	wantOrder := []string{"host", "tenant", "host", "tenant"}
	for i, b := range result.Bills {
		if b.MemberID != wantOrder[i] {
			t.Fatalf("bill %d member: got=%s want=%s", i, b.MemberID, wantOrder[i])
		}
	}

	june := result.Bills[1] // tenant, June
	slotCount := int64(30 * 96)
	wantLocal := decimal.RequireFromString("0.6").Mul(decimal.NewFromInt(slotCount))
	if !june.LocalKWh.Equal(wantLocal) {
		t.Fatalf("tenant june local: got=%s want=%s", june.LocalKWh, wantLocal)
	}
	if !june.GridKWh.IsZero() {
		t.Fatalf("tenant june grid: got=%s want=0", june.GridKWh)
	}
}

// A single missing slot excludes that month from billing while every
// other month is still billed.
func TestPipelineRunExcludesIncompleteMonth(t *testing.T) {
	loc := zurich(t)
	store := memory.NewStore()
	jun := calendar.Month{Year: 2025, Month: time.June}
	jul := calendar.Month{Year: 2025, Month: time.July}
	seedMonth(t, store, jun, loc, map[string]int{"CH200": 1000})
	seedMonth(t, store, jul, loc, nil)

	result, err := newTestPipeline(t, store).Run(context.Background(), jun, jul, calendar.IntervalMonthly)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Excluded) != 1 {
		t.Fatalf("excluded: got=%d want=1", len(result.Excluded))
	}
	if result.Excluded[0].Month != jun {
		t.Fatalf("excluded month: got=%s want=%s", result.Excluded[0].Month, jun)
	}
	if !strings.Contains(result.Excluded[0].Reason, "CH200") {
		t.Fatalf("exclusion reason names no meter: %q", result.Excluded[0].Reason)
	}

	if len(result.Bills) != 2 {
		t.Fatalf("bills: got=%d want=2", len(result.Bills))
	}
	for _, b := range result.Bills {
		if got := b.Period.Label(); got != "2025-07" {
			t.Fatalf("billed period: got=%s want=2025-07", got)
		}
	}
}

// An incomplete month inside a quarterly period suppresses the whole
// period, not just the month.
func TestPipelineRunQuarterlyGate(t *testing.T) {
	loc := zurich(t)
	store := memory.NewStore()
	apr := calendar.Month{Year: 2025, Month: time.April}
	may := calendar.Month{Year: 2025, Month: time.May}
	jun := calendar.Month{Year: 2025, Month: time.June}
	seedMonth(t, store, apr, loc, nil)
	seedMonth(t, store, may, loc, map[string]int{"CH100": 0})
	seedMonth(t, store, jun, loc, nil)

	result, err := newTestPipeline(t, store).Run(context.Background(), apr, jun, calendar.IntervalQuarterly)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Bills) != 0 {
		t.Fatalf("bills in gated quarter: got=%d want=0", len(result.Bills))
	}
	if len(result.Excluded) != 1 || result.Excluded[0].Month != may {
		t.Fatalf("excluded: got=%v want may only", result.Excluded)
	}
}

// Two runs over the same stored readings render byte-identical exports.
func TestPipelineRunIdempotent(t *testing.T) {
	loc := zurich(t)
	store := memory.NewStore()
	jun := calendar.Month{Year: 2025, Month: time.June}
	seedMonth(t, store, jun, loc, nil)
	p := newTestPipeline(t, store)

	render := func() []byte {
		result, err := p.Run(context.Background(), jun, jun, calendar.IntervalMonthly)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		var buf bytes.Buffer
		if err := interfaces.WriteCSV(&buf, result.Bills); err != nil {
			t.Fatalf("write csv: %v", err)
		}
		return buf.Bytes()
	}

	first := render()
	second := render()
	if !bytes.Equal(first, second) {
		t.Fatalf("runs differ:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestNewPipelineValidation(t *testing.T) {
	graph := testGraph(t)
	loc := zurich(t)

	if _, err := NewPipeline(nil, graph, testRates(), loc, nil); err == nil {
		t.Fatal("nil source accepted")
	}
	if _, err := NewPipeline(memory.NewStore(), nil, testRates(), loc, nil); err == nil {
		t.Fatal("nil graph accepted")
	}
	if _, err := NewPipeline(memory.NewStore(), graph, testRates(), nil, nil); err == nil {
		t.Fatal("nil location accepted")
	}
	bad := testRates()
	bad.LocalRate = decimal.RequireFromString("-1")
	if _, err := NewPipeline(memory.NewStore(), graph, bad, loc, nil); err == nil {
		t.Fatal("negative rate accepted")
	}
}

package bkwcsv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	masterdata "vzev-billing/internal/masterdata/domain"
	metering "vzev-billing/internal/metering/domain"
	"vzev-billing/internal/metering/infrastructure/memory"
)

const csvHeader = "Messpunkt;Zeitstempel;Bezug kWh;Einspeisung kWh;Status\n"

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
	})
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	return graph
}

func newTestImporter(t *testing.T) (*Importer, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	imp, err := NewImporter(store, testGraph(t), zurich(t), nil)
	if err != nil {
		t.Fatalf("new importer: %v", err)
	}
	return imp, store
}

func storedReadings(t *testing.T, store *memory.Store, meterID string, year int) []metering.IntervalReading {
	t.Helper()
	loc := zurich(t)
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	to := time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	rows, err := store.Readings(context.Background(), meterID, from, to)
	if err != nil {
		t.Fatalf("readings: %v", err)
	}
	return rows
}

func TestImportReader(t *testing.T) {
	imp, store := newTestImporter(t)

	data := "\xEF\xBB\xBF" + csvHeader +
		"CH100;1.6.2025 00:00:00;0.412;0;W\n" +
		"CH100;1.6.2025 00:15:00;0.388;0;W\n" +
		"CH101;1.6.2025 00:00:00;0;1.204;\n"

	count, err := imp.ImportReader(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != 3 {
		t.Fatalf("imported: got=%d want=3", count)
	}

	rows := storedReadings(t, store, "CH100", 2025)
	if len(rows) != 2 {
		t.Fatalf("CH100 rows: got=%d want=2", len(rows))
	}
	if rows[0].ConsumptionKWh != 0.412 {
		t.Fatalf("consumption: got=%v want=0.412", rows[0].ConsumptionKWh)
	}
	want := time.Date(2025, time.June, 1, 0, 15, 0, 0, zurich(t))
	if !rows[1].SlotStart.Equal(want) {
		t.Fatalf("slot start: got=%s want=%s", rows[1].SlotStart, want)
	}

	// The empty quality flag counts as measured.
	prod := storedReadings(t, store, "CH101", 2025)
	if len(prod) != 1 || prod[0].ProductionKWh != 1.204 {
		t.Fatalf("CH101 rows: got=%v", prod)
	}
}

func TestImportReaderSkipsNonMeasuredQuality(t *testing.T) {
	imp, store := newTestImporter(t)

	data := csvHeader +
		"CH100;1.6.2025 00:00:00;0.4;0;W\n" +
		"CH100;1.6.2025 00:15:00;0.4;0;E\n" +
		"CH100;1.6.2025 00:30:00;0.4;0;G\n"

	count, err := imp.ImportReader(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != 1 {
		t.Fatalf("imported: got=%d want=1", count)
	}
	if rows := storedReadings(t, store, "CH100", 2025); len(rows) != 1 {
		t.Fatalf("stored rows: got=%d want=1", len(rows))
	}
}

func TestImportReaderSkipsUnknownMeter(t *testing.T) {
	imp, store := newTestImporter(t)

	data := csvHeader +
		"CH999;1.6.2025 00:00:00;0.4;0;W\n" +
		"CH100;1.6.2025 00:00:00;0.4;0;W\n"

	count, err := imp.ImportReader(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != 1 {
		t.Fatalf("imported: got=%d want=1", count)
	}
	if rows := storedReadings(t, store, "CH999", 2025); len(rows) != 0 {
		t.Fatalf("unknown meter stored: got=%d rows", len(rows))
	}
}

func TestImportReaderDeduplicatesLastWins(t *testing.T) {
	imp, store := newTestImporter(t)

	data := csvHeader +
		"CH100;1.6.2025 00:00:00;0.1;0;W\n" +
		"CH100;1.6.2025 00:00:00;0.9;0;W\n"

	count, err := imp.ImportReader(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != 1 {
		t.Fatalf("imported: got=%d want=1", count)
	}
	rows := storedReadings(t, store, "CH100", 2025)
	if len(rows) != 1 || rows[0].ConsumptionKWh != 0.9 {
		t.Fatalf("deduped rows: got=%v", rows)
	}
}

// The fall-back night of 2025-10-26 repeats the 02:xx wall hour. The
// export lists it twice in file order; both passes must land on distinct
// absolute slots 15 minutes apart.
func TestImportReaderFallBackHour(t *testing.T) {
	imp, store := newTestImporter(t)

	var sb strings.Builder
	sb.WriteString(csvHeader)
	stamps := []string{
		"26.10.2025 01:30:00",
		"26.10.2025 01:45:00",
		"26.10.2025 02:00:00",
		"26.10.2025 02:15:00",
		"26.10.2025 02:30:00",
		"26.10.2025 02:45:00",
		"26.10.2025 02:00:00",
		"26.10.2025 02:15:00",
		"26.10.2025 02:30:00",
		"26.10.2025 02:45:00",
		"26.10.2025 03:00:00",
	}
	for _, ts := range stamps {
		sb.WriteString("CH100;" + ts + ";0.4;0;W\n")
	}

	count, err := imp.ImportReader(context.Background(), strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != len(stamps) {
		t.Fatalf("imported: got=%d want=%d", count, len(stamps))
	}

	rows := storedReadings(t, store, "CH100", 2025)
	if len(rows) != len(stamps) {
		t.Fatalf("stored rows: got=%d want=%d", len(rows), len(stamps))
	}
	for i := 1; i < len(rows); i++ {
		gap := rows[i].SlotStart.Sub(rows[i-1].SlotStart)
		if gap != 15*time.Minute {
			t.Fatalf("gap between %s and %s: got=%s want=15m",
				rows[i-1].SlotStart, rows[i].SlotStart, gap)
		}
	}
}

func TestImportDir(t *testing.T) {
	imp, store := newTestImporter(t)
	dir := t.TempDir()

	fileA := csvHeader + "CH100;1.6.2025 00:00:00;0.4;0;W\n"
	fileB := csvHeader + "CH100;1.6.2025 00:15:00;0.5;0;W\n"
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte(fileA), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.csv"), []byte(fileB), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	count, err := imp.ImportDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	if count != 2 {
		t.Fatalf("imported: got=%d want=2", count)
	}
	if rows := storedReadings(t, store, "CH100", 2025); len(rows) != 2 {
		t.Fatalf("stored rows: got=%d want=2", len(rows))
	}
}

func TestNewImporterValidation(t *testing.T) {
	graph := testGraph(t)
	loc := zurich(t)
	store := memory.NewStore()

	if _, err := NewImporter(nil, graph, loc, nil); err == nil {
		t.Fatal("nil sink accepted")
	}
	if _, err := NewImporter(store, nil, loc, nil); err == nil {
		t.Fatal("nil graph accepted")
	}
	if _, err := NewImporter(store, graph, nil, nil); err == nil {
		t.Fatal("nil location accepted")
	}
}

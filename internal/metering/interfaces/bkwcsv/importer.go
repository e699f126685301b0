// Package bkwcsv imports the BKW interval-data CSV export: semicolon
// separated, one header row, columns meter id, local timestamp
// (D.M.YYYY HH:MM:SS), consumption kWh, production kWh and quality flag.
// Only measured rows (flag "W" or empty) are accepted.
package bkwcsv

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	masterdata "vzev-billing/internal/masterdata/domain"
	metering "vzev-billing/internal/metering/domain"
	"vzev-billing/internal/observability/metrics"
)

const batchSize = 2000

// timestampLayout matches the German date format of the export.
const timestampLayout = "2.1.2006 15:04:05"

// Sink receives parsed readings in batches.
type Sink interface {
	UpsertBatch(ctx context.Context, readings []metering.IntervalReading) (int, error)
}

// Importer parses BKW CSV files into a reading sink. Meters unknown to
// the member graph are skipped with a warning.
type Importer struct {
	sink   Sink
	graph  *masterdata.Graph
	loc    *time.Location
	logger *log.Logger
}

// NewImporter constructs an importer.
func NewImporter(sink Sink, graph *masterdata.Graph, loc *time.Location, logger *log.Logger) (*Importer, error) {
	if sink == nil {
		return nil, errors.New("bkwcsv: nil sink")
	}
	if graph == nil {
		return nil, errors.New("bkwcsv: nil member graph")
	}
	if loc == nil {
		return nil, errors.New("bkwcsv: nil location")
	}
	return &Importer{sink: sink, graph: graph, loc: loc, logger: logger}, nil
}

// ImportDir imports every *.csv file in dir, sorted by name. Returns the
// total number of readings written.
func (i *Importer) ImportDir(ctx context.Context, dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, err
	}
	sort.Strings(files)
	if len(files) == 0 {
		i.logf("no CSV files found in %s", dir)
		return 0, nil
	}

	total := 0
	for _, file := range files {
		count, err := i.ImportFile(ctx, file)
		if err != nil {
			metrics.IncImportError()
			return total, fmt.Errorf("import %s: %w", filepath.Base(file), err)
		}
		total += count
	}
	return total, nil
}

// ImportFile imports a single CSV file.
func (i *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count, err := i.ImportReader(ctx, f)
	if err != nil {
		return count, err
	}
	i.logf("imported %d reading(s) from %s", count, filepath.Base(path))
	return count, nil
}

// ImportReader parses one CSV stream and upserts the readings.
func (i *Importer) ImportReader(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	// Per-meter previous timestamp, needed to resolve the repeated
	// fall-back hour: the second 02:xx occurrence arrives after the first
	// but parses to the same wall time.
	prevByMeter := make(map[string]time.Time)
	deduped := make(map[string]metering.IntervalReading)

	header := true
	skippedQuality := 0
	skippedUnknown := make(map[string]struct{})

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if header {
			header = false
			continue
		}
		if len(row) < 4 {
			continue
		}

		meterID := strings.TrimSpace(row[0])
		if meterID == "" {
			continue
		}
		if _, ok := i.graph.MeterByExternalID(meterID); !ok {
			skippedUnknown[meterID] = struct{}{}
			continue
		}

		quality := ""
		if len(row) > 4 {
			quality = strings.TrimSpace(row[4])
		}
		if quality != "" && quality != string(metering.QualityMeasured) {
			skippedQuality++
			continue
		}

		slotStart, err := i.parseTimestamp(strings.TrimSpace(row[1]), prevByMeter[meterID])
		if err != nil {
			i.logf("skipping row with bad timestamp %q: %v", row[1], err)
			continue
		}
		prevByMeter[meterID] = slotStart

		reading := metering.IntervalReading{
			MeterID:        meterID,
			SlotStart:      slotStart,
			ConsumptionKWh: parseKWh(row[2]),
			ProductionKWh:  parseKWh(row[3]),
			Quality:        metering.QualityMeasured,
		}
		// Last occurrence wins, matching the upsert semantics of the store.
		deduped[meterID+"|"+strconv.FormatInt(slotStart.Unix(), 10)] = reading
	}

	if skippedQuality > 0 {
		i.logf("skipped %d row(s) with non-measured quality flag", skippedQuality)
	}
	if len(skippedUnknown) > 0 {
		ids := make([]string, 0, len(skippedUnknown))
		for id := range skippedUnknown {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		i.logf("skipped %d unknown meter(s): %s", len(ids), strings.Join(ids, ", "))
	}

	readings := make([]metering.IntervalReading, 0, len(deduped))
	for _, reading := range deduped {
		readings = append(readings, reading)
	}
	sort.Slice(readings, func(a, b int) bool {
		if readings[a].MeterID != readings[b].MeterID {
			return readings[a].MeterID < readings[b].MeterID
		}
		return readings[a].SlotStart.Before(readings[b].SlotStart)
	})

	total := 0
	for start := 0; start < len(readings); start += batchSize {
		end := start + batchSize
		if end > len(readings) {
			end = len(readings)
		}
		count, err := i.sink.UpsertBatch(ctx, readings[start:end])
		total += count
		if err != nil {
			return total, err
		}
	}
	metrics.AddReadingsImported(total)
	return total, nil
}

// parseTimestamp interprets the local wall time. During the fall-back
// transition the 02:xx hour repeats and ParseInLocation resolves the
// ambiguity to the second occurrence; the file lists both passes in
// order, so rows still ahead of the meter's previous reading belong to
// the first occurrence, one absolute hour earlier.
func (i *Importer) parseTimestamp(value string, prev time.Time) (time.Time, error) {
	t, err := time.ParseInLocation(timestampLayout, value, i.loc)
	if err != nil {
		return time.Time{}, err
	}
	if earlier := t.Add(-time.Hour); earlier.Hour() == t.Hour() && earlier.After(prev) {
		t = earlier
	}
	return t, nil
}

func parseKWh(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// stripBOM removes a UTF-8 byte order mark, which the BKW export carries.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}

func (i *Importer) logf(format string, args ...any) {
	if i.logger != nil {
		i.logger.Printf(format, args...)
	}
}

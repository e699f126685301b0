package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	metering "vzev-billing/internal/metering/domain"
)

const defaultReadingsTable = "meter_energy"

// Store persists interval readings in postgres. Readings are keyed by
// (meter_id, slot_start); re-importing the same file is idempotent.
type Store struct {
	db    *sql.DB
	table string
}

// NewStore constructs a store.
func NewStore(db *sql.DB, opts ...Option) *Store {
	store := &Store{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Option configures the store.
type Option func(*Store)

// WithTable overrides the readings table name.
func WithTable(table string) Option {
	return func(store *Store) {
		if store != nil && table != "" {
			store.table = table
		}
	}
}

// EnsureSchema creates the readings table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("reading store: nil db")
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	meter_id        TEXT NOT NULL,
	slot_start      TIMESTAMPTZ NOT NULL,
	consumption_kwh DOUBLE PRECISION NOT NULL DEFAULT 0,
	production_kwh  DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality         TEXT NOT NULL DEFAULT 'W',
	PRIMARY KEY (meter_id, slot_start)
)`, s.table))
	return err
}

// UpsertBatch writes readings inside one transaction, overwriting existing
// (meter, slot) entries. Returns the number of rows written.
func (s *Store) UpsertBatch(ctx context.Context, readings []metering.IntervalReading) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("reading store: nil db")
	}
	if len(readings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (meter_id, slot_start, consumption_kwh, production_kwh, quality)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (meter_id, slot_start) DO UPDATE SET
	consumption_kwh = EXCLUDED.consumption_kwh,
	production_kwh = EXCLUDED.production_kwh,
	quality = EXCLUDED.quality`, s.table)

	count := 0
	for _, r := range readings {
		if r.MeterID == "" {
			_ = tx.Rollback()
			return 0, metering.ErrEmptyMeterID
		}
		if r.SlotStart.IsZero() {
			_ = tx.Rollback()
			return 0, metering.ErrZeroSlotStart
		}
		if _, err := tx.ExecContext(ctx, query,
			r.MeterID, r.SlotStart.UTC(), r.ConsumptionKWh, r.ProductionKWh, string(r.Quality),
		); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Readings returns quality-filtered readings for [start, end), sorted by
// slot start ascending.
func (s *Store) Readings(ctx context.Context, meterID string, start, end time.Time) ([]metering.IntervalReading, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reading store: nil db")
	}
	if meterID == "" {
		return nil, metering.ErrEmptyMeterID
	}

	query := fmt.Sprintf(`
SELECT meter_id, slot_start, consumption_kwh, production_kwh, quality
FROM %s
WHERE meter_id = $1 AND quality = $2 AND slot_start >= $3 AND slot_start < $4
ORDER BY slot_start ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, meterID, string(metering.QualityMeasured), start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []metering.IntervalReading
	for rows.Next() {
		var r metering.IntervalReading
		var slotStart time.Time
		var quality string
		if err := rows.Scan(&r.MeterID, &slotStart, &r.ConsumptionKWh, &r.ProductionKWh, &quality); err != nil {
			return nil, err
		}
		r.SlotStart = slotStart
		r.Quality = metering.QualityFlag(quality)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

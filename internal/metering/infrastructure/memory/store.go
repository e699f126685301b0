// Package memory provides an in-memory reading store with the same
// contract as the postgres one, used by tests and single-run pipelines.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	metering "vzev-billing/internal/metering/domain"
)

// Store keeps readings per meter, sorted by slot start.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[int64]metering.IntervalReading
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]map[int64]metering.IntervalReading)}
}

// UpsertBatch stores readings, overwriting existing (meter, slot) entries.
func (s *Store) UpsertBatch(ctx context.Context, readings []metering.IntervalReading) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range readings {
		if r.MeterID == "" {
			return count, metering.ErrEmptyMeterID
		}
		if r.SlotStart.IsZero() {
			return count, metering.ErrZeroSlotStart
		}
		byMeter := s.data[r.MeterID]
		if byMeter == nil {
			byMeter = make(map[int64]metering.IntervalReading)
			s.data[r.MeterID] = byMeter
		}
		byMeter[r.SlotStart.Unix()] = r
		count++
	}
	return count, nil
}

// Readings returns quality-filtered readings for [start, end), sorted by
// slot start ascending.
func (s *Store) Readings(ctx context.Context, meterID string, start, end time.Time) ([]metering.IntervalReading, error) {
	_ = ctx
	if meterID == "" {
		return nil, metering.ErrEmptyMeterID
	}

	s.mu.RLock()
	byMeter := s.data[meterID]
	result := make([]metering.IntervalReading, 0, len(byMeter))
	for _, r := range byMeter {
		if !r.Valid() {
			continue
		}
		if r.SlotStart.Before(start) || !r.SlotStart.Before(end) {
			continue
		}
		result = append(result, r)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].SlotStart.Before(result[j].SlotStart)
	})
	return result, nil
}

package metering

import "time"

// QualityFlag marks the measurement quality of a reading. Only measured
// ("W" in the BKW export) readings participate in billing.
type QualityFlag string

const (
	// QualityMeasured is the accepted quality flag.
	QualityMeasured QualityFlag = "W"
)

// IntervalReading is one 15-minute energy sample of a meter. SlotStart is
// the absolute instant at which the half-open slot begins. Readings are
// immutable once accepted; (MeterID, SlotStart) must be unique.
type IntervalReading struct {
	MeterID        string
	SlotStart      time.Time
	ConsumptionKWh float64
	ProductionKWh  float64
	Quality        QualityFlag
}

// Valid reports whether the reading carries the accepted quality flag.
func (r IntervalReading) Valid() bool { return r.Quality == QualityMeasured }

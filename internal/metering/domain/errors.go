package metering

import "errors"

var (
	// ErrEmptyMeterID is returned when a reading has no meter id.
	ErrEmptyMeterID = errors.New("metering: empty meter id")
	// ErrZeroSlotStart is returned when a reading has a zero slot start.
	ErrZeroSlotStart = errors.New("metering: zero slot start")
	// ErrDuplicateReading is returned when two readings share meter and slot.
	ErrDuplicateReading = errors.New("metering: duplicate reading for meter and slot")
)

package calendar

import "errors"

var (
	// ErrInvalidRange is returned when a range start is not before its end.
	ErrInvalidRange = errors.New("calendar: range start must be before end")
	// ErrUnknownIntervalKind is returned for an unsupported billing interval.
	ErrUnknownIntervalKind = errors.New("calendar: unknown billing interval kind")
	// ErrNilLocation is returned when no time zone location is provided.
	ErrNilLocation = errors.New("calendar: nil location")
)

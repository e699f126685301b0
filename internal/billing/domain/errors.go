package billing

import "errors"

var (
	// ErrNonBillablePeriod is returned when a period contains a month
	// without validated allocation data. Partial periods are never billed;
	// the caller may retry once the data completes.
	ErrNonBillablePeriod = errors.New("billing: period contains a non-billable month")
	// ErrEmptyPeriod is returned for a period without months.
	ErrEmptyPeriod = errors.New("billing: empty billing period")
	// ErrNegativeRate is returned when a configured rate is negative.
	ErrNegativeRate = errors.New("billing: negative rate")
)

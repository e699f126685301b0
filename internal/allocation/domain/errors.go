package allocation

import "errors"

var (
	// ErrEnergyImbalance is returned when allocated shares do not conserve energy.
	ErrEnergyImbalance = errors.New("allocation: allocated shares do not balance")
	// ErrNegativeEnergy is returned when a reading carries a negative energy value.
	ErrNegativeEnergy = errors.New("allocation: negative energy value")
)

// Package indicators provides pure indicator arithmetic over price series.
// Every function is deterministic: identical input series yield identical
// values. Functions return ErrInsufficientData instead of extrapolating
// when the series is shorter than the requested period.
package indicators

import "errors"

// ErrInsufficientData is returned when a series is too short for the
// requested calculation. Callers are expected to fail closed.
var ErrInsufficientData = errors.New("insufficient data for calculation")

// ErrInvalidPeriod is returned for non-positive periods.
var ErrInvalidPeriod = errors.New("period must be positive")

func validate(n, period int) error {
	if period <= 0 {
		return ErrInvalidPeriod
	}
	if n < period {
		return ErrInsufficientData
	}
	return nil
}

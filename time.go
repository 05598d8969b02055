package identity

import "time"

// IsWithinThresholdPeriod reports whether t falls inside the trailing window
// described by pattern, a time.ParseDuration string such as "24h". Reset
// token expiry is measured against this window.
func IsWithinThresholdPeriod(t time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	threshold := time.Now().Add(-duration)
	if t.After(threshold) {
		return true, nil
	}

	return false, nil
}

// IsOutsideThresholdPeriod reports whether t has aged past the trailing
// window described by pattern.
func IsOutsideThresholdPeriod(t time.Time, pattern string) (bool, error) {
	valid, err := IsWithinThresholdPeriod(t, pattern)
	if err != nil {
		return false, err
	}

	return !valid, nil
}

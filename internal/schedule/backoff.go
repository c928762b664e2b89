package schedule

import "time"

// Backoff stretches the base delay after consecutive failures:
// base*2^(failures-1), capped at max. It never returns less than base, so a
// max at or below base leaves the cadence unchanged. A zero max disables it.
func Backoff(base time.Duration, failures int, max time.Duration) time.Duration {
	if max <= 0 || failures <= 0 || max <= base {
		return base
	}
	d := base
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d < base {
		return base
	}
	return d
}

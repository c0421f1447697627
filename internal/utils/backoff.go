package utils

import "time"

// ExponentialBackoff returns the delay before the next try after `attempt`
// failed attempts: base doubled per additional attempt, never exceeding max.
// Attempt values below 1 are treated as 1.
func ExponentialBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

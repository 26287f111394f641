package sensor

import (
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// BackoffFactor is the growth factor of the poll delay per consecutive failure.
const BackoffFactor = 2.0

// maxBackoffSteps bounds the number of growth steps; the cap is reached long before.
const maxBackoffSteps = 62

// NextDelay returns the delay before the next attempt after the given number
// of consecutive failures: interval * 2^failures, capped at maxBackoff. Zero
// failures yields the plain interval.
func NextDelay(interval, maxBackoff time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return interval
	}
	if failures > maxBackoffSteps {
		failures = maxBackoffSteps
	}
	if maxBackoff < interval {
		maxBackoff = interval
	}

	backoff := wait.Backoff{
		Duration: interval,
		Factor:   BackoffFactor,
		Cap:      maxBackoff,
		Steps:    failures + 1,
	}

	var delay time.Duration
	for i := 0; i <= failures; i++ {
		delay = backoff.Step()
	}
	return delay
}

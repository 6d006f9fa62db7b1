package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
)

// ExponentialBackoff doubles from 2s per attempt up to 5m, plus up to 250ms
// of jitter.
func ExponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt)))
	if delay > backoffCap || delay <= 0 {
		delay = backoffCap
	}

	return delay + time.Duration(rand.IntN(250))*time.Millisecond
}

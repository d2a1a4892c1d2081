package worker

import (
	"math/rand/v2"
	"time"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
	maxJitter   = 250 * time.Millisecond
)

// ExponentialBackoff is the delay before retry number attempt+1:
// 2s, 4s, 8s, ... capped at 5m, plus up to 250ms of jitter.
func ExponentialBackoff(attempt int) time.Duration {
	return backoffWithJitter(attempt, rand.N[time.Duration])
}

func backoffWithJitter(attempt int, jitter func(time.Duration) time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := backoffCap
	// past 2^8 the base already exceeds the cap
	if attempt < 8 {
		delay = min(backoffBase<<attempt, backoffCap)
	}

	return delay + jitter(maxJitter)
}

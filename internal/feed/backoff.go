package feed

import "time"

// Backoff is the reconnection policy: the delay doubles per attempt from
// Base up to Max, and at most MaxAttempts retries are scheduled.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff returns 1s doubling to 30s, five attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        1 * time.Second,
		Max:         30 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay returns the wait before retry number attempt (zero based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := b.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max || delay <= 0 {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}

// Exhausted reports whether no further retry may be scheduled.
func (b Backoff) Exhausted(attempts int) bool {
	return attempts >= b.MaxAttempts
}

package billing

import "time"

// Backoff computes bounded exponential redelivery delays.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before the next attempt after the given 1-based
// attempt failed: Base, 2*Base, 4*Base, ... capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

package domain

import "time"

// RateDecision is the outcome of one rate-limit admission check.
type RateDecision struct {
	Allowed   bool
	Count     int64
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RetryAfter returns how long the client must wait before the window resets.
// Zero when the decision allowed the request.
func (d RateDecision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

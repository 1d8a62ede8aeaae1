package transport

import (
	"context"
	"time"
)

// Policy is the retry schedule shared by both strategies: a bounded attempt
// count with exponential backoff. It is an iterative loop rather than a
// rescheduling callback, so the attempt count is exact and the schedule is
// testable in isolation.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// call is attempted MaxRetries+1 times in total.
	MaxRetries int
	// Delay is the base backoff; the wait before retry n is Delay * 2^n.
	Delay time.Duration
}

// Backoff returns the wait before the given retry (0-based).
func (p Policy) Backoff(retry int) time.Duration {
	return p.Delay * (1 << retry)
}

// Run invokes attempt until it succeeds or the schedule is exhausted,
// sleeping the backoff between attempts. The attempt index passed to the
// callback is 0-based. Returns the last error on exhaustion, or the context
// error if ctx is cancelled while waiting.
func (p Policy) Run(ctx context.Context, attempt func(n int) error) error {
	var err error
	for n := 0; n <= p.MaxRetries; n++ {
		if n > 0 {
			timer := time.NewTimer(p.Backoff(n - 1))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		if err = attempt(n); err == nil {
			return nil
		}
	}
	return err
}

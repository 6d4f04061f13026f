package octopus

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces requests to the upstream API and tracks server-signaled
// backoff. One instance is shared by every worker in a run; it is the only
// state shared across meters and must stay internally synchronized.
type RateLimiter struct {
	mu        sync.Mutex
	interval  time.Duration
	next      time.Time // earliest slot for the next request
	notBefore time.Time // server-signaled hold, from Retry-After
}

// NewRateLimiter returns a limiter allowing at most rps requests per second.
// rps <= 0 disables pacing (server-signaled holds still apply).
func NewRateLimiter(rps float64) *RateLimiter {
	var interval time.Duration
	if rps > 0 {
		interval = time.Duration(float64(time.Second) / rps)
	}
	return &RateLimiter{interval: interval}
}

// Wait blocks until the caller may issue a request or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	at := l.next
	if at.Before(now) {
		at = now
	}
	if at.Before(l.notBefore) {
		at = l.notBefore
	}
	l.next = at.Add(l.interval)
	l.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hold suspends all requests for d, e.g. after a 429 with Retry-After.
func (l *RateLimiter) Hold(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	l.mu.Lock()
	if until.After(l.notBefore) {
		l.notBefore = until
	}
	l.mu.Unlock()
}

// Package cache holds short-lived state shared across requests: password
// reset codes and rate limit counters. Redis backs it when configured,
// otherwise a process-local map does.
package cache

import (
	"context"
	"time"
)

// Counter increments fixed-window counters. The window starts with the
// first increment of a key and the count resets once it elapses.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Limiter allows at most Max hits per key within Window.
type Limiter struct {
	Name    string
	Max     int
	Window  time.Duration
	counter Counter
}

func NewLimiter(counter Counter, name string, max int, window time.Duration) *Limiter {
	return &Limiter{Name: name, Max: max, Window: window, counter: counter}
}

// Allow records a hit for key. When the limit is exceeded it returns false
// and the time left until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	count, ttl, err := l.counter.Incr(ctx, "ratelimit:"+l.Name+":"+key, l.Window)
	if err != nil {
		return false, 0, err
	}
	if count > int64(l.Max) {
		return false, ttl, nil
	}
	return true, 0, nil
}

package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter is a token bucket per key (client address plus endpoint).
// Buckets idle for longer than the idle timeout are dropped on access.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*entry
	burst     int
	perSec    rate.Limit
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// New creates a limiter allowing burst requests and refilling perSec tokens per second.
func New(burst int, perSec float64) *Limiter {
	return &Limiter{
		m:      make(map[string]*entry),
		burst:  max(burst, 1),
		perSec: rate.Limit(perSec),
		idle:   10 * time.Minute,
		now:    time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.perSec, l.burst)}
		l.m[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for k, e := range l.m {
		if now.Sub(e.seen) >= l.idle {
			delete(l.m, k)
		}
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit provides a blocking token-bucket limiter, one instance
// per external service so that a slow service cannot throttle another.
package ratelimit

import (
	"sync"
	"time"
)

// pollInterval is how long Acquire sleeps between refill checks. Tests
// rely on it being small relative to per-token intervals at test rates.
const pollInterval = 50 * time.Millisecond

// Limiter is a token bucket: capacity equals the configured rate
// (requests/sec) and tokens refill continuously in proportion to elapsed
// time. Safe for concurrent use; Acquire blocks, it never rejects.
type Limiter struct {
	mu         sync.Mutex
	rate       float64
	tokens     float64
	lastRefill time.Time
}

// New returns a Limiter allowing rate requests per second. The bucket
// starts full.
func New(rate float64) *Limiter {
	return &Limiter{
		rate:       rate,
		tokens:     rate,
		lastRefill: time.Now(),
	}
}

// Rate returns the configured requests per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// Acquire blocks the calling goroutine until a token is available, then
// consumes one.
func (l *Limiter) Acquire() {
	for {
		if l.tryAcquire() {
			return
		}
		time.Sleep(pollInterval)
	}
}

func (l *Limiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens = min(l.rate, l.tokens+elapsed*l.rate)
	l.lastRefill = now

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

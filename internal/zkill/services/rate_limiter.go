package services

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces ZKillboard RedisQ limits: one request in flight per
// queueID and at most two requests per second per IP.
type RateLimiter struct {
	mu              sync.Mutex
	requestInFlight bool
	lastRequest     time.Time
	minInterval     time.Duration
	backoffLevel    int
	maxBackoffLevel int
	baseBackoff     time.Duration
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		minInterval:     500 * time.Millisecond,
		baseBackoff:     5 * time.Second,
		maxBackoffLevel: 4, // caps backoff at 80 seconds
	}
}

// Acquire blocks until it's safe to make a request.
func (r *RateLimiter) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.requestInFlight {
		return fmt.Errorf("request already in flight")
	}

	elapsed := time.Since(r.lastRequest)
	if elapsed < r.minInterval {
		time.Sleep(r.minInterval - elapsed)
	}

	r.requestInFlight = true
	r.lastRequest = time.Now()
	r.backoffLevel = 0

	return nil
}

// Release marks the request as complete.
func (r *RateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestInFlight = false
}

// IncrementBackoff increases the backoff level after a rate limit hit.
func (r *RateLimiter) IncrementBackoff() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backoffLevel < r.maxBackoffLevel {
		r.backoffLevel++
	}
}

// GetBackoffDuration returns the current backoff duration.
func (r *RateLimiter) GetBackoffDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.baseBackoff * time.Duration(1<<r.backoffLevel)
}

// Reset clears all rate limit state.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestInFlight = false
	r.backoffLevel = 0
	r.lastRequest = time.Time{}
}

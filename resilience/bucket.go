package resilience

import (
	"context"
	"sync"
	"time"
)

// BucketConfig holds token bucket configuration.
type BucketConfig struct {
	// Burst is the bucket capacity, and the number of requests allowed
	// back to back.
	Burst int

	// Rate is tokens added per second.
	Rate float64
}

// DefaultBucketConfig allows bursts of 10 requests and 5 per second
// sustained, well under the GitHub API secondary limits.
func DefaultBucketConfig() BucketConfig {
	return BucketConfig{Burst: 10, Rate: 5}
}

// TokenBucket is a token bucket rate limiter. It starts full.
type TokenBucket struct {
	burst float64
	rate  float64
	now   func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(config BucketConfig) *TokenBucket {
	if config.Burst < 1 {
		config.Burst = 1
	}
	tb := &TokenBucket{
		burst: float64(config.Burst),
		rate:  config.Rate,
		now:   time.Now,
	}
	tb.tokens = tb.burst
	tb.last = tb.now()
	return tb
}

// refill adds the tokens earned since the last call. Callers hold mu.
func (tb *TokenBucket) refill() {
	now := tb.now()
	tb.tokens = min(tb.burst, tb.tokens+now.Sub(tb.last).Seconds()*tb.rate)
	tb.last = now
}

// reserve takes a token if one is available, otherwise it returns how
// long until one will be.
func (tb *TokenBucket) reserve() (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()

	if tb.tokens >= 1 {
		tb.tokens--
		return 0, true
	}
	if tb.rate <= 0 {
		return time.Second, false
	}
	return time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second)), false
}

// Allow takes a token without blocking.
func (tb *TokenBucket) Allow() bool {
	_, ok := tb.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait, ok := tb.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens returns the tokens currently available.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

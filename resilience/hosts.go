package resilience

import (
	"context"
	"fmt"
	"sync"

	"github.com/willibrandon/pytoolchain/observability"
)

// registry lazily creates one value per host.
type registry[T any] struct {
	mu    sync.RWMutex
	items   map[string]T
	newItem func() T
}

func newRegistry[T any](newItem func() T) *registry[T] {
	return &registry[T]{items: make(map[string]T), newItem: newItem}
}

func (r *registry[T]) get(host string) T {
	r.mu.RLock()
	item, ok := r.items[host]
	r.mu.RUnlock()
	if ok {
		return item
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok = r.items[host]; ok {
		return item
	}
	item = r.newItem()
	r.items[host] = item
	return item
}

// HostBreakers keeps one circuit breaker per host so a dead mirror does
// not block requests to the others.
type HostBreakers struct {
	breakers *registry[*Breaker]
	logger   observability.Logger
}

// NewHostBreakers creates per-host breakers. A nil logger discards output.
func NewHostBreakers(config BreakerConfig, logger observability.Logger) *HostBreakers {
	return &HostBreakers{
		breakers: newRegistry(func() *Breaker { return NewBreaker(config) }),
		logger:   observability.OrNull(logger),
	}
}

// Allow reports whether a request to host may proceed. The error wraps
// ErrCircuitOpen.
func (h *HostBreakers) Allow(host string) error {
	if err := h.breakers.get(host).Allow(); err != nil {
		return fmt.Errorf("%w for %s", err, host)
	}
	return nil
}

// Record reports the outcome of an allowed request to host.
func (h *HostBreakers) Record(host string, success bool) {
	b := h.breakers.get(host)
	before := b.State()
	after := b.Record(success)
	if before != after {
		h.logger.Warn("Circuit for {Host} is now {State}", host, after.String())
	}
}

// State returns host's breaker state. Unknown hosts are closed.
func (h *HostBreakers) State(host string) BreakerState {
	return h.breakers.get(host).State()
}

// HostLimiter keeps one token bucket per host.
type HostLimiter struct {
	buckets *registry[*TokenBucket]
}

// NewHostLimiter creates per-host buckets.
func NewHostLimiter(config BucketConfig) *HostLimiter {
	return &HostLimiter{
		buckets: newRegistry(func() *TokenBucket { return NewTokenBucket(config) }),
	}
}

// Wait blocks until host has a token or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	return l.buckets.get(host).Wait(ctx)
}

// Allow takes a token for host without blocking.
func (l *HostLimiter) Allow(host string) bool {
	return l.buckets.get(host).Allow()
}

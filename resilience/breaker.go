// Package resilience protects manifest and archive hosts from being
// hammered: a circuit breaker per host stops requests to a host that keeps
// failing, and a token bucket per host paces requests to it.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	StateClosed   BreakerState = iota // requests flow
	StateOpen                         // requests are rejected
	StateHalfOpen                     // one probe request is allowed
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned while a breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit.
	MaxFailures uint

	// Cooldown is how long an open circuit rejects requests before letting
	// a probe through.
	Cooldown time.Duration
}

// DefaultBreakerConfig opens after 5 consecutive failures for 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
	}
}

// Breaker is a three-state circuit breaker. A single probe is allowed in
// the half-open state; its outcome closes or reopens the circuit.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    uint
	openedAt    time.Time
	probeActive bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	return &Breaker{config: config, now: time.Now}
}

// State returns the current state. An open breaker whose cooldown has
// elapsed reports HalfOpen.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// advance moves an expired open circuit to half-open. Callers hold mu.
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.state = StateHalfOpen
		b.probeActive = false
	}
}

// Allow reports whether a request may proceed. Every nil return must be
// followed by exactly one Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.probeActive {
			return ErrCircuitOpen
		}
		b.probeActive = true
		return nil
	default:
		return ErrCircuitOpen
	}
}

// Record reports the outcome of an allowed request and returns the state
// it leaves the breaker in.
func (b *Breaker) Record(success bool) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.state = StateClosed
		b.failures = 0
		b.probeActive = false
		return b.state
	}

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.MaxFailures {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	}
	return b.state
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.probeActive = false
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

package cache

import (
	"context"
	"time"
)

type contextKey string

const policyContextKey contextKey = "pytoolchain.cache.policy"

// DefaultMaxAge is how long a cached manifest stays fresh.
const DefaultMaxAge = 30 * time.Minute

// Policy controls how manifest bodies are cached for one resolution.
type Policy struct {
	// MaxAge is the freshness window for cached bodies.
	MaxAge time.Duration

	// NoCache skips reads and writes entirely.
	NoCache bool

	// Refresh skips reads but still writes what was fetched.
	Refresh bool
}

// DefaultPolicy returns a policy using DefaultMaxAge.
func DefaultPolicy() Policy {
	return Policy{MaxAge: DefaultMaxAge}
}

// WithPolicy attaches p to ctx.
func WithPolicy(ctx context.Context, p Policy) context.Context {
	return context.WithValue(ctx, policyContextKey, p)
}

// PolicyFromContext returns the policy attached to ctx, or DefaultPolicy.
func PolicyFromContext(ctx context.Context) Policy {
	if ctx != nil {
		if p, ok := ctx.Value(policyContextKey).(Policy); ok {
			return p
		}
	}
	return DefaultPolicy()
}

package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/willibrandon/pytoolchain/resilience"
)

// Archive downloads are retried the way the hosted runner tool cache
// retries them: up to three more attempts, waiting 10s and then 20s.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 10 * time.Second
	DefaultMaxBackoff     = 20 * time.Second
	DefaultBackoffFactor  = 2.0
	DefaultJitterFactor   = 0.1

	// maxRetryAfter caps how long a server can push a download back.
	maxRetryAfter = 5 * time.Minute
)

// RetryConfig controls DoWithRetry. Waits grow from InitialBackoff by
// BackoffFactor up to MaxBackoff, each spread by ±JitterFactor.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		BackoffFactor:  DefaultBackoffFactor,
		JitterFactor:   DefaultJitterFactor,
	}
}

// transientErrors are transport failures worth another attempt.
var transientErrors = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	context.DeadlineExceeded,
}

// IsRetriable reports whether a transport error is transient. An open
// circuit and a canceled request are final.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	for _, target := range transientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRetriableStatus reports whether a response status is transient: 408,
// 429 and every 5xx. 403 and 404 are answers, not outages.
func IsRetriableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return code >= http.StatusInternalServerError
	}
}

// CalculateBackoff returns the wait before retry number attempt+1.
func (rc *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	wait := float64(rc.InitialBackoff)
	for i := 0; i < attempt && wait < float64(rc.MaxBackoff); i++ {
		wait *= rc.BackoffFactor
	}
	wait = min(wait, float64(rc.MaxBackoff))

	wait += wait * rc.JitterFactor * (2*rand.Float64() - 1)
	if wait <= 0 {
		return rc.InitialBackoff
	}
	return time.Duration(wait)
}

// ParseRetryAfter reads a Retry-After value, in seconds or as an HTTP
// date, capped at five minutes. Missing, past or malformed values are 0.
func ParseRetryAfter(headerValue string) time.Duration {
	value := strings.TrimSpace(headerValue)
	if value == "" {
		return 0
	}

	var wait time.Duration
	if seconds, err := strconv.Atoi(value); err == nil {
		wait = time.Duration(seconds) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		wait = time.Until(at)
	}
	return min(max(wait, 0), maxRetryAfter)
}

// DoWithRetry sends req until it gets a non-transient answer or
// MaxRetries retries are spent. A Retry-After header replaces the computed
// backoff. When retries run out on a transient status the last response is
// returned for the caller to classify.
func (c *Client) DoWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	maxRetries := c.retryConfig.MaxRetries
	target := req.URL.String()

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		c.prepare(attemptReq)

		resp, err := c.roundTrip(ctx, attemptReq)
		switch {
		case err == nil && !IsRetriableStatus(resp.StatusCode):
			if attempt > 0 {
				c.logger.InfoContext(ctx, "{Method} {URL} succeeded after {Attempt} retries", req.Method, target, attempt)
			}
			return resp, nil
		case err != nil && !IsRetriable(err):
			return nil, err
		case attempt == maxRetries && err != nil:
			c.logger.ErrorContext(ctx, "{Method} {URL} failed after {MaxRetries} retries: {Error}", req.Method, target, maxRetries, err)
			return nil, fmt.Errorf("after %d retries: %w", maxRetries, err)
		case attempt == maxRetries:
			return resp, nil
		}

		wait := c.retryConfig.CalculateBackoff(attempt)
		if resp != nil {
			if after := ParseRetryAfter(resp.Header.Get("Retry-After")); after > 0 {
				wait = after
			}
			_ = resp.Body.Close()
		}
		c.logger.DebugContext(ctx, "Retrying {Method} {URL} ({Attempt}/{MaxRetries}) in {Wait}",
			req.Method, target, attempt+1, maxRetries, wait)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

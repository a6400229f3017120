// Package http is the HTTP client used to fetch release manifests and
// download interpreter archives.
//
// It wraps net/http with a user agent, optional GitHub token auth, request
// logging and metrics, OpenTelemetry tracing and bounded retries.
package http

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/resilience"
)

const (
	DefaultTimeout   = 5 * time.Minute
	DefaultUserAgent = "pytoolchain/dev"
)

// DefaultTokenHosts are the hosts that receive the auth token. Archive
// mirrors such as downloads.python.org never see it.
var DefaultTokenHosts = []string{
	"github.com",
	"api.github.com",
	"raw.githubusercontent.com",
}

// Client wraps http.Client with user agent, auth and retry handling.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	token       string
	tokenHosts  []string
	timeout     time.Duration
	retryConfig *RetryConfig
	breakers    *resilience.HostBreakers
	limiter     *resilience.HostLimiter
	logger      observability.Logger
}

// Config holds HTTP client configuration
type Config struct {
	Timeout   time.Duration
	UserAgent string

	// Token is sent as "Authorization: token <Token>" to TokenHosts.
	Token      string
	TokenHosts []string

	Transport     TransportConfig
	RetryConfig   *RetryConfig
	Logger        observability.Logger // nil uses NullLogger
	EnableTracing bool

	// Breaker and RateLimit configure per-host protection. Nil disables it.
	Breaker   *resilience.BreakerConfig
	RateLimit *resilience.BucketConfig
}

// DefaultConfig returns a client configuration with sensible defaults
func DefaultConfig() *Config {
	breaker := resilience.DefaultBreakerConfig()
	rateLimit := resilience.DefaultBucketConfig()
	return &Config{
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		TokenHosts:  DefaultTokenHosts,
		Transport:   DefaultTransportConfig(),
		RetryConfig: DefaultRetryConfig(),
		Breaker:     &breaker,
		RateLimit:   &rateLimit,
	}
}

// NewClient creates a new HTTP client with the given configuration
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.TokenHosts == nil {
		cfg.TokenHosts = DefaultTokenHosts
	}

	transport := NewTransport(cfg.Transport)
	if cfg.EnableTracing {
		transport = observability.NewHTTPTracingTransport(transport, observability.TracerName+"/http")
	}

	logger := observability.OrNull(cfg.Logger)
	var breakers *resilience.HostBreakers
	if cfg.Breaker != nil {
		breakers = resilience.NewHostBreakers(*cfg.Breaker, logger)
	}
	var limiter *resilience.HostLimiter
	if cfg.RateLimit != nil {
		limiter = resilience.NewHostLimiter(*cfg.RateLimit)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		userAgent:   cfg.UserAgent,
		token:       cfg.Token,
		tokenHosts:  cfg.TokenHosts,
		timeout:     cfg.Timeout,
		retryConfig: cfg.RetryConfig,
		breakers:    breakers,
		limiter:     limiter,
		logger:      logger,
	}
}

// prepare sets the user agent and, for token hosts, the auth header.
func (c *Client) prepare(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" && req.Header.Get("Authorization") == "" && slices.Contains(c.tokenHosts, req.URL.Hostname()) {
		req.Header.Set("Authorization", "token "+c.token)
	}
}

// Do executes an HTTP request once.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.Clone(ctx)
	c.prepare(req)

	c.logger.DebugContext(ctx, "HTTP {Method} {URL}", req.Method, req.URL.String())
	return c.roundTrip(ctx, req)
}

// roundTrip sends req once, paced by the host's rate limit and guarded by
// its circuit breaker. Transport errors and 5xx answers count as failures.
func (c *Client) roundTrip(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}
	}
	if c.breakers != nil {
		if err := c.breakers.Allow(host); err != nil {
			observability.HTTPRequestsTotal.WithLabelValues(req.Method, "circuit_open", host).Inc()
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if c.breakers != nil {
		c.breakers.Record(host, err == nil && resp.StatusCode < http.StatusInternalServerError)
	}

	if err != nil {
		c.logger.WarnContext(ctx, "HTTP {Method} {URL} failed after {Duration}ms: {Error}",
			req.Method, req.URL.String(), duration.Milliseconds(), err)
		observability.HTTPRequestsTotal.WithLabelValues(req.Method, "error", req.URL.Host).Inc()
		return nil, err
	}

	c.logger.DebugContext(ctx, "HTTP {Method} {URL} → {StatusCode} ({Duration}ms)",
		req.Method, req.URL.String(), resp.StatusCode, duration.Milliseconds())
	observability.HTTPRequestsTotal.WithLabelValues(req.Method, fmt.Sprintf("%d", resp.StatusCode), req.URL.Host).Inc()
	observability.HTTPRequestDuration.WithLabelValues(req.Method, req.URL.Host).Observe(duration.Seconds())

	return resp, nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(ctx, req)
}

// Option is a functional option for configuring the client
type Option func(*Config)

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		cfg.Timeout = timeout
	}
}

// WithUserAgent sets the user agent string
func WithUserAgent(ua string) Option {
	return func(cfg *Config) {
		cfg.UserAgent = ua
	}
}

// WithToken sets the auth token sent to token hosts.
func WithToken(token string) Option {
	return func(cfg *Config) {
		cfg.Token = token
	}
}

// WithLogger sets the request logger.
func WithLogger(logger observability.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// WithTracing enables OpenTelemetry client spans.
func WithTracing(enabled bool) Option {
	return func(cfg *Config) {
		cfg.EnableTracing = enabled
	}
}

// WithRetryConfig sets custom retry configuration
func WithRetryConfig(retryCfg *RetryConfig) Option {
	return func(cfg *Config) {
		cfg.RetryConfig = retryCfg
	}
}

// WithBreaker sets the per-host circuit breaker. Nil disables it.
func WithBreaker(breaker *resilience.BreakerConfig) Option {
	return func(cfg *Config) {
		cfg.Breaker = breaker
	}
}

// WithRateLimit sets the per-host rate limit. Nil disables it.
func WithRateLimit(limit *resilience.BucketConfig) Option {
	return func(cfg *Config) {
		cfg.RateLimit = limit
	}
}

// WithMaxRetries sets the maximum number of retries
func WithMaxRetries(n int) Option {
	return func(cfg *Config) {
		if cfg.RetryConfig == nil {
			cfg.RetryConfig = DefaultRetryConfig()
		}
		cfg.RetryConfig.MaxRetries = n
	}
}

// NewClientWithOptions creates a client with functional options
func NewClientWithOptions(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return NewClient(cfg)
}

package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/willibrandon/pytoolchain/resilience"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want string
	}{
		{"nil config uses defaults", nil, DefaultUserAgent},
		{"empty user agent uses default", &Config{}, DefaultUserAgent},
		{"custom user agent", &Config{UserAgent: "custom/1.0"}, "custom/1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.cfg)
			if client.userAgent != tt.want {
				t.Errorf("userAgent = %q, want %q", client.userAgent, tt.want)
			}
		})
	}
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %q, want GET", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", ua, DefaultUserAgent)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := NewClient(nil).Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestClient_TokenOnlyForTokenHosts(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)

	tests := []struct {
		name     string
		hosts    []string
		wantAuth string
	}{
		{"host listed", []string{u.Hostname()}, "token secret"},
		{"host not listed", []string{"api.github.com"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotAuth = ""
			client := NewClient(&Config{Token: "secret", TokenHosts: tt.hosts})

			resp, err := client.Get(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			_ = resp.Body.Close()

			if gotAuth != tt.wantAuth {
				t.Errorf("Authorization = %q, want %q", gotAuth, tt.wantAuth)
			}
		})
	}
}

func TestClient_DoLeavesCallerHeadersAlone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token secret" {
			t.Errorf("Authorization = %q, want %q", r.Header.Get("Authorization"), "token secret")
		}
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	client := NewClient(&Config{Token: "secret", TokenHosts: []string{u.Hostname()}})

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	_ = resp.Body.Close()

	if len(req.Header) != 0 {
		t.Errorf("caller request headers = %v, want none", req.Header)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithOptions(WithTimeout(50 * time.Millisecond))
	if _, err := client.Get(context.Background(), server.URL); err == nil {
		t.Error("expected timeout error, got nil")
	}
}

func TestFunctionalOptions(t *testing.T) {
	client := NewClientWithOptions(
		WithTimeout(5*time.Second),
		WithUserAgent("test/1.0"),
		WithToken("abc"),
		WithMaxRetries(7),
	)

	if client.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", client.timeout)
	}
	if client.userAgent != "test/1.0" {
		t.Errorf("userAgent = %q, want test/1.0", client.userAgent)
	}
	if client.token != "abc" {
		t.Errorf("token = %q, want abc", client.token)
	}
	if client.retryConfig.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", client.retryConfig.MaxRetries)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code        int
		wantErr     bool
		rateLimited bool
	}{
		{http.StatusOK, false, false},
		{http.StatusNotFound, true, false},
		{http.StatusForbidden, true, true},
		{http.StatusTooManyRequests, true, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer server.Close()

			resp, err := NewClient(nil).Get(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}

			err = CheckStatus(resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckStatus() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				_ = resp.Body.Close()
				return
			}

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("error type = %T, want *StatusError", err)
			}
			if statusErr.IsRateLimited() != tt.rateLimited {
				t.Errorf("IsRateLimited() = %v, want %v", statusErr.IsRateLimited(), tt.rateLimited)
			}
		})
	}
}

func TestClient_CircuitBreakerStopsFailingHost(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClientWithOptions(
		WithMaxRetries(0),
		WithBreaker(&resilience.BreakerConfig{MaxFailures: 2, Cooldown: time.Hour}),
	)

	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Get() #%d error = %v", i+1, err)
		}
		_ = resp.Body.Close()
	}

	_, err := client.Get(context.Background(), server.URL)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Get() after failures error = %v, want ErrCircuitOpen", err)
	}
	if hits != 2 {
		t.Errorf("server hits = %d, want 2", hits)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	if _, err := client.DoWithRetry(context.Background(), req); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("DoWithRetry() error = %v, want ErrCircuitOpen", err)
	}
}

func TestClient_RateLimitPacesHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithOptions(WithRateLimit(&resilience.BucketConfig{Burst: 1, Rate: 0.001}))

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Get(ctx, server.URL); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get() over the limit error = %v, want context.DeadlineExceeded", err)
	}
}

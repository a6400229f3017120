package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	toolhttp "github.com/willibrandon/pytoolchain/http"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/version"
)

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{
			"next and last",
			`<https://api.github.com/repositories/1/releases?page=2>; rel="next", <https://api.github.com/repositories/1/releases?page=5>; rel="last"`,
			"https://api.github.com/repositories/1/releases?page=2",
		},
		{
			"last page",
			`<https://api.github.com/repositories/1/releases?page=4>; rel="prev", <https://api.github.com/repositories/1/releases?page=1>; rel="first"`,
			"",
		},
		{"unquoted rel", `<https://x.test/p2>; rel=next`, "https://x.test/p2"},
		{"garbage", `not a link`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextPageURL(tt.header); got != tt.want {
				t.Errorf("NextPageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pypyManifest))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(toolhttp.NewClient(nil), WithURL(version.PyPy, server.URL+"/versions.json"))

	before, _ := observability.GetCounterValue(observability.ManifestFetchesTotal, "PyPy", "success")

	releases, err := fetcher.Fetch(context.Background(), version.PyPy)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(releases) != 3 {
		t.Errorf("len(releases) = %d, want 3", len(releases))
	}

	after, _ := observability.GetCounterValue(observability.ManifestFetchesTotal, "PyPy", "success")
	if after != before+1 {
		t.Errorf("success count = %v, want %v", after, before+1)
	}
}

func TestHTTPFetcher_Pagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(`<%s/releases?page=2>; rel="next"`, server.URL))
			_, _ = w.Write([]byte(`[{"tag_name": "graal-24.1.0", "assets": []}]`))
		case "2":
			w.Header().Set("Link", fmt.Sprintf(`<%s/releases?page=1>; rel="prev"`, server.URL))
			_, _ = w.Write([]byte(`[{"tag_name": "graal-23.1.2", "assets": []}]`))
		default:
			t.Errorf("unexpected page %q", r.URL.RawQuery)
		}
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(toolhttp.NewClient(nil), WithURL(version.GraalPy, server.URL+"/releases"))

	releases, err := fetcher.Fetch(context.Background(), version.GraalPy)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("len(releases) = %d, want 2", len(releases))
	}
	if releases[1].RuntimeVersion != "23.1.2" {
		t.Errorf("second page release = %q, want 23.1.2", releases[1].RuntimeVersion)
	}
}

func TestHTTPFetcher_MaxPages(t *testing.T) {
	var requests int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		// every page points at itself
		w.Header().Set("Link", fmt.Sprintf(`<%s/releases>; rel="next"`, server.URL))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(toolhttp.NewClient(nil),
		WithURL(version.GraalPy, server.URL+"/releases"),
		WithMaxPages(3))

	if _, err := fetcher.Fetch(context.Background(), version.GraalPy); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
}

func TestHTTPFetcher_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		rateLimited bool
	}{
		{"rate limited", http.StatusForbidden, `{"message": "API rate limit exceeded"}`, true},
		{"too many requests", http.StatusTooManyRequests, ``, true},
		{"not found", http.StatusNotFound, ``, false},
		{"bad json", http.StatusOK, `<html>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			fetcher := NewHTTPFetcher(toolhttp.NewClient(nil), WithURL(version.CPython, server.URL))

			_, err := fetcher.Fetch(context.Background(), version.CPython)
			if !errors.Is(err, ErrManifestUnavailable) {
				t.Fatalf("Fetch() error = %v, want ErrManifestUnavailable", err)
			}

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("error type = %T, want *FetchError", err)
			}
			if fetchErr.Runtime != version.CPython {
				t.Errorf("Runtime = %v, want CPython", fetchErr.Runtime)
			}
			if fetchErr.IsRateLimited() != tt.rateLimited {
				t.Errorf("IsRateLimited() = %v, want %v", fetchErr.IsRateLimited(), tt.rateLimited)
			}
		})
	}
}

func TestHTTPFetcher_DefaultURLs(t *testing.T) {
	fetcher := NewHTTPFetcher(toolhttp.NewClient(nil))

	tests := []struct {
		kind version.RuntimeKind
		want string
	}{
		{version.CPython, CPythonManifestURL},
		{version.PyPy, PyPyManifestURL},
		{version.GraalPy, GraalPyManifestURL},
	}

	for _, tt := range tests {
		if got := fetcher.URL(tt.kind); got != tt.want {
			t.Errorf("URL(%v) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

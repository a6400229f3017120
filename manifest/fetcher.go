package manifest

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	toolhttp "github.com/willibrandon/pytoolchain/http"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/version"
)

// Default listing locations.
const (
	CPythonManifestURL = "https://raw.githubusercontent.com/actions/python-versions/main/versions-manifest.json"
	PyPyManifestURL    = "https://downloads.python.org/pypy/versions.json"
	GraalPyManifestURL = "https://api.github.com/repos/oracle/graalpython/releases"
)

// DefaultMaxPages bounds how many Link pages are followed.
const DefaultMaxPages = 20

// maxBodySize bounds a single manifest document.
const maxBodySize = 64 << 20

var (
	linkRegex    = regexp.MustCompile(`<([^>]+)>(.*)`)
	relNextRegex = regexp.MustCompile(`rel="?next"?`)
)

// Fetcher returns the published releases of a runtime.
type Fetcher interface {
	Fetch(ctx context.Context, kind version.RuntimeKind) ([]Release, error)
}

// HTTPFetcher downloads release listings over HTTP. Paginated listings are
// followed through the Link header until exhausted.
type HTTPFetcher struct {
	client   *toolhttp.Client
	urls     map[version.RuntimeKind]string
	maxPages int
	logger   observability.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithURL overrides the listing location of a runtime.
func WithURL(kind version.RuntimeKind, url string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.urls[kind] = url
	}
}

// WithMaxPages bounds Link pagination.
func WithMaxPages(n int) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxPages = n
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger observability.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = observability.OrNull(logger)
	}
}

// NewHTTPFetcher creates a fetcher using client.
func NewHTTPFetcher(client *toolhttp.Client, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: client,
		urls: map[version.RuntimeKind]string{
			version.CPython: CPythonManifestURL,
			version.PyPy:    PyPyManifestURL,
			version.GraalPy: GraalPyManifestURL,
		},
		maxPages: DefaultMaxPages,
		logger:   observability.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the listing location of kind.
func (f *HTTPFetcher) URL(kind version.RuntimeKind) string {
	return f.urls[kind]
}

// Fetch downloads and decodes every page of kind's listing. Any failure is
// returned as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, kind version.RuntimeKind) ([]Release, error) {
	url := f.urls[kind]
	ctx, span := observability.StartManifestFetchSpan(ctx, kind.String(), url)

	releases, err := f.fetchPages(ctx, kind, url)
	if err != nil {
		observability.ManifestFetchesTotal.WithLabelValues(kind.String(), "failure").Inc()
		fetchErr := &FetchError{Runtime: kind, URL: url, Err: err}
		observability.EndSpanWithError(span, fetchErr)
		return nil, fetchErr
	}

	observability.ManifestFetchesTotal.WithLabelValues(kind.String(), "success").Inc()
	span.SetAttributes(observability.AttrReleaseCount.Int(len(releases)))
	observability.EndSpanWithError(span, nil)
	f.logger.DebugContext(ctx, "Fetched {Count} {Runtime} releases from {URL}", len(releases), kind.ToolName(), url)
	return releases, nil
}

func (f *HTTPFetcher) fetchPages(ctx context.Context, kind version.RuntimeKind, url string) ([]Release, error) {
	if url == "" {
		return nil, fmt.Errorf("no listing location for runtime %s", kind)
	}

	var all []Release
	for page := 1; url != ""; page++ {
		if page > f.maxPages {
			f.logger.WarnContext(ctx, "Stopped following {Runtime} listing after {Pages} pages", kind.ToolName(), f.maxPages)
			break
		}

		body, next, err := f.fetchPage(ctx, url)
		if err != nil {
			return nil, err
		}

		releases, err := Decode(kind, body)
		if err != nil {
			return nil, err
		}
		all = append(all, releases...)
		url = next
	}
	return all, nil
}

func (f *HTTPFetcher) fetchPage(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, "", err
	}
	if err := toolhttp.CheckStatus(resp); err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("read manifest body: %w", err)
	}

	return body, NextPageURL(resp.Header.Get("Link")), nil
}

// NextPageURL extracts the rel="next" target of a GitHub style Link header.
func NextPageURL(linkHeader string) string {
	for _, link := range strings.Split(linkHeader, ",") {
		m := linkRegex.FindStringSubmatch(strings.TrimSpace(link))
		if m == nil {
			continue
		}
		for _, param := range strings.Split(m[2], ";") {
			if relNextRegex.MatchString(strings.TrimSpace(param)) {
				return m[1]
			}
		}
	}
	return ""
}

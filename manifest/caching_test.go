package manifest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/pytoolchain/cache"
	"github.com/willibrandon/pytoolchain/version"
)

type countingFetcher struct {
	calls    int
	releases []Release
	err      error
}

func (f *countingFetcher) Fetch(ctx context.Context, kind version.RuntimeKind) ([]Release, error) {
	f.calls++
	return f.releases, f.err
}

func newTestTiered(t *testing.T) *cache.Tiered {
	t.Helper()
	disk, err := cache.NewDiskCache(t.TempDir())
	require.NoError(t, err)
	return cache.NewTiered(cache.NewMemoryCache(10, 1<<20), disk)
}

var testReleases = []Release{{
	Tag:             "3.12.6",
	LanguageVersion: "3.12.6",
	Stable:          true,
	Assets:          []Asset{{Name: "python.tar.gz", Arch: "x64", Platform: "linux", DownloadURL: "https://example.test/p.tgz"}},
}}

func TestCachingFetcher_MemoizesReleases(t *testing.T) {
	inner := &countingFetcher{releases: testReleases}
	fetcher := NewCachingFetcher(inner, newTestTiered(t), nil)
	ctx := context.Background()

	first, err := fetcher.Fetch(ctx, version.CPython)
	require.NoError(t, err)
	second, err := fetcher.Fetch(ctx, version.CPython)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, testReleases, second)

	// other runtimes are cached separately
	_, err = fetcher.Fetch(ctx, version.PyPy)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingFetcher_Policy(t *testing.T) {
	tests := []struct {
		name      string
		policy    cache.Policy
		wantCalls int
	}{
		{"default", cache.DefaultPolicy(), 1},
		{"no cache", cache.Policy{MaxAge: time.Hour, NoCache: true}, 2},
		{"refresh", cache.Policy{MaxAge: time.Hour, Refresh: true}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &countingFetcher{releases: testReleases}
			fetcher := NewCachingFetcher(inner, newTestTiered(t), nil)
			ctx := cache.WithPolicy(context.Background(), tt.policy)

			for range 2 {
				_, err := fetcher.Fetch(ctx, version.CPython)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, inner.calls)
		})
	}
}

func TestCachingFetcher_ErrorsNotCached(t *testing.T) {
	inner := &countingFetcher{err: &FetchError{Runtime: version.PyPy, URL: PyPyManifestURL, Err: errors.New("boom")}}
	fetcher := NewCachingFetcher(inner, newTestTiered(t), nil)
	ctx := context.Background()

	_, err := fetcher.Fetch(ctx, version.PyPy)
	assert.ErrorIs(t, err, ErrManifestUnavailable)

	inner.err = nil
	inner.releases = testReleases
	releases, err := fetcher.Fetch(ctx, version.PyPy)
	require.NoError(t, err)
	assert.Len(t, releases, 1)
	assert.Equal(t, 2, inner.calls)
}

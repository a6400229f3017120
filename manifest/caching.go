package manifest

import (
	"context"
	"encoding/json"
	"io"

	"github.com/willibrandon/pytoolchain/cache"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/version"
)

const cacheKey = "releases"

// CachingFetcher memoizes another Fetcher's decoded releases. The cache
// policy is read from the context (see cache.WithPolicy).
type CachingFetcher struct {
	inner  Fetcher
	cache  *cache.Tiered
	logger observability.Logger
}

// NewCachingFetcher wraps inner.
func NewCachingFetcher(inner Fetcher, c *cache.Tiered, logger observability.Logger) *CachingFetcher {
	return &CachingFetcher{inner: inner, cache: c, logger: observability.OrNull(logger)}
}

func cacheSource(kind version.RuntimeKind) string {
	return "manifest:" + kind.String()
}

// Fetch returns cached releases when fresh, otherwise fetches and stores
// them. Cache failures are logged and never fail the fetch.
func (c *CachingFetcher) Fetch(ctx context.Context, kind version.RuntimeKind) ([]Release, error) {
	policy := cache.PolicyFromContext(ctx)
	if policy.NoCache {
		return c.inner.Fetch(ctx, kind)
	}

	source := cacheSource(kind)
	if !policy.Refresh {
		data, ok, err := c.cache.Get(ctx, source, cacheKey, policy.MaxAge)
		if err != nil {
			c.logger.WarnContext(ctx, "Reading cached {Runtime} releases failed: {Error}", kind.ToolName(), err)
		}
		if ok {
			var releases []Release
			if err := json.Unmarshal(data, &releases); err == nil {
				c.logger.DebugContext(ctx, "Using cached {Runtime} releases", kind.ToolName())
				return releases, nil
			}
		}
	}

	releases, err := c.inner.Fetch(ctx, kind)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(releases)
	if err == nil {
		err = c.cache.Set(ctx, source, cacheKey, data, policy.MaxAge, validateReleases)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Caching {Runtime} releases failed: {Error}", kind.ToolName(), err)
	}

	return releases, nil
}

func validateReleases(r io.ReadSeeker) error {
	var releases []Release
	return json.NewDecoder(r).Decode(&releases)
}

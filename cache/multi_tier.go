package cache

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/willibrandon/pytoolchain/observability"
)

// Tiered reads through memory then disk, promoting disk hits to memory.
// The disk tier is optional.
type Tiered struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewTiered combines memory and disk. disk may be nil.
func NewTiered(memory *MemoryCache, disk *DiskCache) *Tiered {
	return &Tiered{memory: memory, disk: disk}
}

func memoryKey(sourceURL, key string) string {
	return sourceURL + "#" + key
}

// Get returns the body for sourceURL and key if either tier has a fresh copy.
func (t *Tiered) Get(ctx context.Context, sourceURL, key string, maxAge time.Duration) ([]byte, bool, error) {
	mk := memoryKey(sourceURL, key)
	if data, ok := t.memory.Get(mk); ok {
		observability.ManifestCacheHitsTotal.WithLabelValues("memory").Inc()
		return data, true, nil
	}
	observability.ManifestCacheMissesTotal.WithLabelValues("memory").Inc()

	if t.disk == nil {
		return nil, false, nil
	}

	reader, ok, err := t.disk.Get(sourceURL, key, maxAge)
	if err != nil || !ok {
		observability.ManifestCacheMissesTotal.WithLabelValues("disk").Inc()
		return nil, false, err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, err
	}

	observability.ManifestCacheHitsTotal.WithLabelValues("disk").Inc()
	t.memory.Set(mk, data, maxAge)
	return data, true, nil
}

// Set stores data in both tiers. validate is applied before the disk write.
func (t *Tiered) Set(ctx context.Context, sourceURL, key string, data []byte, maxAge time.Duration, validate func(io.ReadSeeker) error) error {
	t.memory.Set(memoryKey(sourceURL, key), data, maxAge)
	if t.disk == nil {
		return nil
	}
	return t.disk.Set(sourceURL, key, bytes.NewReader(data), validate)
}

// Clear empties both tiers.
func (t *Tiered) Clear() error {
	t.memory.Clear()
	if t.disk == nil {
		return nil
	}
	return t.disk.Clear()
}

// Package cache memoizes release manifest bodies.
//
// Manifests are small JSON documents fetched from GitHub and
// downloads.python.org. A resolution fetches each one at most once, but
// repeated CLI invocations on the same machine (one per job step) would
// otherwise hit the same endpoints again and again, which is what trips the
// GitHub API rate limit. MemoryCache holds bodies for the life of the
// process and DiskCache keeps them between runs; Tiered combines the two.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is a cached manifest body.
type Entry struct {
	Value  []byte
	Expiry time.Time
	Size   int
}

// IsExpired reports whether the entry is past its expiry.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expiry)
}

// MemoryCache is a size-bounded LRU with per-entry expiry.
type MemoryCache struct {
	maxEntries int
	maxSize    int64

	mu        sync.Mutex
	entries   map[string]*list.Element
	lru       *list.List // front is most recently used
	totalSize int64
}

type lruItem struct {
	key   string
	entry *Entry
}

// NewMemoryCache creates a cache holding at most maxEntries bodies and
// maxSize bytes.
func NewMemoryCache(maxEntries int, maxSize int64) *MemoryCache {
	return &MemoryCache{
		maxEntries: maxEntries,
		maxSize:    maxSize,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
	}
}

// Get returns a copy of the body stored under key.
func (mc *MemoryCache) Get(key string) ([]byte, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	elem, ok := mc.entries[key]
	if !ok {
		return nil, false
	}

	item := elem.Value.(*lruItem)
	if item.entry.IsExpired() {
		mc.remove(elem)
		return nil, false
	}

	mc.lru.MoveToFront(elem)

	value := make([]byte, len(item.entry.Value))
	copy(value, item.entry.Value)
	return value, true
}

// Set stores value under key for ttl, evicting the least recently used
// bodies when a bound is exceeded.
func (mc *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry := &Entry{Value: value, Expiry: time.Now().Add(ttl), Size: len(value)}

	if elem, ok := mc.entries[key]; ok {
		item := elem.Value.(*lruItem)
		mc.totalSize += int64(entry.Size - item.entry.Size)
		item.entry = entry
		mc.lru.MoveToFront(elem)
	} else {
		mc.entries[key] = mc.lru.PushFront(&lruItem{key: key, entry: entry})
		mc.totalSize += int64(entry.Size)
	}

	for mc.lru.Len() > 0 && (mc.lru.Len() > mc.maxEntries || mc.totalSize > mc.maxSize) {
		mc.remove(mc.lru.Back())
	}
}

// Delete removes key.
func (mc *MemoryCache) Delete(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if elem, ok := mc.entries[key]; ok {
		mc.remove(elem)
	}
}

// Clear drops every body.
func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*list.Element)
	mc.lru = list.New()
	mc.totalSize = 0
}

// Stats returns the current entry count and byte size.
func (mc *MemoryCache) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return Stats{Entries: len(mc.entries), SizeBytes: mc.totalSize}
}

// remove must be called with mu held.
func (mc *MemoryCache) remove(elem *list.Element) {
	item := elem.Value.(*lruItem)
	delete(mc.entries, item.key)
	mc.lru.Remove(elem)
	mc.totalSize -= int64(item.entry.Size)
}

// Stats holds cache statistics.
type Stats struct {
	Entries   int
	SizeBytes int64
}

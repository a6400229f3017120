package cache

import (
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	mc := NewMemoryCache(100, 1024*1024)

	mc.Set("cpython", []byte(`[{"version":"3.12.1"}]`), time.Hour)

	got, ok := mc.Get("cpython")
	if !ok {
		t.Fatal("expected key to be found")
	}
	if string(got) != `[{"version":"3.12.1"}]` {
		t.Errorf("got %s", got)
	}
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	mc := NewMemoryCache(100, 1024*1024)
	mc.Set("key", []byte("abc"), time.Hour)

	got, _ := mc.Get("key")
	got[0] = 'z'

	again, _ := mc.Get("key")
	if string(again) != "abc" {
		t.Errorf("cached value mutated to %q", again)
	}
}

func TestMemoryCache_TTLExpiration(t *testing.T) {
	mc := NewMemoryCache(100, 1024*1024)
	mc.Set("key", []byte("value"), 50*time.Millisecond)

	if _, ok := mc.Get("key"); !ok {
		t.Fatal("expected key to exist")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := mc.Get("key"); ok {
		t.Fatal("expected key to be expired")
	}
	if stats := mc.Stats(); stats.Entries != 0 {
		t.Errorf("Entries = %d after expiry, want 0", stats.Entries)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	mc := NewMemoryCache(3, 1024*1024)

	mc.Set("key1", []byte("value1"), time.Hour)
	mc.Set("key2", []byte("value2"), time.Hour)
	mc.Set("key3", []byte("value3"), time.Hour)

	// key2 becomes least recently used
	mc.Get("key1")
	mc.Set("key4", []byte("value4"), time.Hour)

	if _, ok := mc.Get("key2"); ok {
		t.Fatal("expected key2 to be evicted")
	}
	for _, key := range []string{"key1", "key3", "key4"} {
		if _, ok := mc.Get(key); !ok {
			t.Errorf("expected %s to exist", key)
		}
	}
}

func TestMemoryCache_SizeEviction(t *testing.T) {
	mc := NewMemoryCache(100, 10)

	mc.Set("a", []byte("123456"), time.Hour)
	mc.Set("b", []byte("123456"), time.Hour)

	if _, ok := mc.Get("a"); ok {
		t.Error("expected a to be evicted by size")
	}
	if stats := mc.Stats(); stats.SizeBytes != 6 {
		t.Errorf("SizeBytes = %d, want 6", stats.SizeBytes)
	}
}

func TestMemoryCache_UpdateAdjustsSize(t *testing.T) {
	mc := NewMemoryCache(100, 1024)

	mc.Set("key", []byte("short"), time.Hour)
	mc.Set("key", []byte("much longer value"), time.Hour)

	stats := mc.Stats()
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
	if stats.SizeBytes != int64(len("much longer value")) {
		t.Errorf("SizeBytes = %d, want %d", stats.SizeBytes, len("much longer value"))
	}
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	mc := NewMemoryCache(100, 1024)
	mc.Set("a", []byte("1"), time.Hour)
	mc.Set("b", []byte("2"), time.Hour)

	mc.Delete("a")
	if _, ok := mc.Get("a"); ok {
		t.Error("expected a to be deleted")
	}

	mc.Clear()
	if stats := mc.Stats(); stats.Entries != 0 || stats.SizeBytes != 0 {
		t.Errorf("Stats() after Clear = %+v", stats)
	}
}

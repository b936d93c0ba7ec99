package cache

import (
	"testing"
	"time"

	"eventfin/internal/log"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 7, 25, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	c.Set("all", "snapshot")

	if got, ok := c.Get("all"); !ok || got != "snapshot" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
	clk.t = clk.t.Add(time.Minute)
	if _, ok := c.Get("all"); ok {
		t.Error("entry should expire after the TTL")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry kept, size %d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should be cached", k)
		}
	}
}

func TestLRUCache_PurgeAndDelete(t *testing.T) {
	c, _ := newTestCache(8, time.Minute)
	for _, k := range []string{"all", "thisMonth", "lastMonth"} {
		c.Set(k, k)
	}
	c.Delete("all")
	if c.Size() != 2 {
		t.Fatalf("size after delete = %d", c.Size())
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("size after purge = %d", c.Size())
	}
	c.Set("all", "again")
	if _, ok := c.Get("all"); !ok {
		t.Error("cache unusable after purge")
	}
}

func TestLRUCache_ZeroTTLDisables(t *testing.T) {
	c, _ := newTestCache(8, 0)
	c.Set("all", "x")
	if _, ok := c.Get("all"); ok {
		t.Error("zero TTL should disable caching")
	}
}

func TestManager_Clean(t *testing.T) {
	c, clk := newTestCache(8, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("c", "3")
	clk.t = clk.t.Add(45 * time.Second)

	m := NewManager(log.Discard())
	m.Register(c)
	if n := m.Clean(); n != 2 {
		t.Errorf("Clean() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

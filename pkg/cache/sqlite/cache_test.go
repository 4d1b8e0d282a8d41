package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHashPrompt(t *testing.T) {
	h1 := HashPrompt("gemini-2.5-flash", "sys", "hello")
	h2 := HashPrompt("gemini-2.5-flash", "sys", "hello")
	h3 := HashPrompt("gpt-4o-mini", "sys", "hello")
	h4 := HashPrompt("gemini-2.5-flash", "sysh", "ello")

	if h1 != h2 {
		t.Error("same input should produce same hash")
	}
	if h1 == h3 {
		t.Error("different model should produce different hash")
	}
	if h1 == h4 {
		t.Error("field boundaries should affect the hash")
	}
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()
	hash := HashPrompt("gemini-2.5-flash", "", "hi")

	if err := c.Put(ctx, hash, "gemini-2.5-flash", "hello there", 42); err != nil {
		t.Fatal(err)
	}

	entry, ok := c.Get(ctx, hash, "gemini-2.5-flash")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Content != "hello there" || entry.TokensUsed != 42 {
		t.Errorf("unexpected entry: %+v", entry)
	}

	// Miss for different model
	if _, ok := c.Get(ctx, hash, "gpt-4o-mini"); ok {
		t.Error("expected cache miss for different model")
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t, time.Minute)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Put(ctx, "testhash", "gpt-4o-mini", "data", 1); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Minute)

	if _, ok := c.Get(ctx, "testhash", "gpt-4o-mini"); ok {
		t.Error("expected cache miss after TTL expiration")
	}

	removed, err := c.Clear(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired entry removed, got %d", removed)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Put(ctx, "h1", "gpt-4o-mini", "data", 1)
	c.Get(ctx, "h1", "gpt-4o-mini") // hit
	c.Get(ctx, "h2", "gpt-4o-mini") // miss

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Put(ctx, "h1", "gpt-4o-mini", "data", 1)
	_ = c.Put(ctx, "h2", "gpt-4o-mini", "data", 1)

	if _, err := c.Clear(ctx, false); err != nil {
		t.Fatal(err)
	}

	stats, _ := c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}

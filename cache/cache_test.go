package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nickmccarty/aiassist/core/chat"
)

func newTestCache(t *testing.T, opts ...Option) *ResponseCache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "response_cache.db"), opts...)
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t)

	c.Put("key1", chat.CachedResponse{Content: "answer", TokensUsed: 12, ModelUsed: "gpt-4o-mini"})

	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.Content != "answer" || got.TokensUsed != 12 || got.ModelUsed != "gpt-4o-mini" {
		t.Errorf("cached response mangled: %+v", got)
	}
}

func TestGet_MissingKey(t *testing.T) {
	c := newTestCache(t)
	if _, ok := c.Get("nothing here"); ok {
		t.Error("expected a miss for an unknown key")
	}
}

func TestGet_ExpiredEntryMissesAndIsDeleted(t *testing.T) {
	c := newTestCache(t, WithTTL(time.Hour))

	c.Put("stale", chat.CachedResponse{Content: "old"})
	// Move the clock past the TTL.
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, ok := c.Get("stale"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expected lazy deletion of the expired entry, %d entries remain", c.Len())
	}
}

func TestPut_OverwritesExisting(t *testing.T) {
	c := newTestCache(t)

	c.Put("key", chat.CachedResponse{Content: "first"})
	c.Put("key", chat.CachedResponse{Content: "second"})

	got, ok := c.Get("key")
	if !ok || got.Content != "second" {
		t.Errorf("expected overwrite, got %+v (hit=%v)", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after overwrite, got %d", c.Len())
	}
}

func TestCache_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response_cache.db")

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	first.Put("persisted", chat.CachedResponse{Content: "still here", TokensUsed: 3})
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	got, ok := second.Get("persisted")
	if !ok || got.Content != "still here" {
		t.Errorf("expected entry to survive reopen, got %+v (hit=%v)", got, ok)
	}
}

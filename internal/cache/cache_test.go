package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(10)
	c.Set("https://example.go.jp/page/", "<html>body</html>", 200, "text/html", 0)

	// Trailing-slash and fragment variants hit the same key.
	entry, ok := c.Get("https://example.go.jp/page#top")
	require.True(t, ok)
	require.Equal(t, "<html>body</html>", entry.HTML)
	require.Equal(t, 200, entry.Status)

	stats := c.GetStats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(0), stats.Misses)
}

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c := New(10, WithNowFunc(func() time.Time { return now }))

	c.Set("https://a.go.jp/x", "stale", 200, "text/html", time.Second)

	now = now.Add(1100 * time.Millisecond)
	_, ok := c.Get("https://a.go.jp/x")
	require.False(t, ok)

	stats := c.GetStats()
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, 0, stats.Entries, "expired entry is deleted on access")
}

func TestLRUEvictionRespectsAccess(t *testing.T) {
	c := New(2)
	c.Set("https://a.go.jp/A", "A", 200, "text/html", 0)
	c.Set("https://a.go.jp/B", "B", 200, "text/html", 0)

	// Accessing A refreshes its recency, so inserting C evicts B.
	_, ok := c.Get("https://a.go.jp/A")
	require.True(t, ok)

	c.Set("https://a.go.jp/C", "C", 200, "text/html", 0)

	_, ok = c.Get("https://a.go.jp/A")
	require.True(t, ok, "A was recently used and must survive")
	_, ok = c.Get("https://a.go.jp/B")
	require.False(t, ok, "B was least recently used and must be evicted")
	_, ok = c.Get("https://a.go.jp/C")
	require.True(t, ok)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := New(10)
	c.Set("https://a.go.jp/1", "one", 200, "text/html", time.Hour)
	c.Set("https://a.go.jp/2", "two", 200, "text/html", time.Hour)
	c.Get("https://a.go.jp/1")
	require.NoError(t, c.Persist(path))

	restored := New(10)
	require.NoError(t, restored.Load(path))

	entry, ok := restored.Get("https://a.go.jp/2")
	require.True(t, ok)
	require.Equal(t, "two", entry.HTML)

	stats := restored.GetStats()
	require.Equal(t, 2, stats.Entries)
}

func TestLoadDiscardsExpiredEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	c := New(10, WithNowFunc(func() time.Time { return now }))
	c.Set("https://a.go.jp/fresh", "fresh", 200, "text/html", time.Hour)
	c.Set("https://a.go.jp/stale", "stale", 200, "text/html", time.Minute)
	require.NoError(t, c.Persist(path))

	later := now.Add(30 * time.Minute)
	restored := New(10, WithNowFunc(func() time.Time { return later }))
	require.NoError(t, restored.Load(path))

	_, ok := restored.Get("https://a.go.jp/fresh")
	require.True(t, ok)
	require.Equal(t, 1, restored.GetStats().Entries)
}

func TestLoadMissingFileIsNoop(t *testing.T) {
	c := New(10)
	require.NoError(t, c.Load(filepath.Join(t.TempDir(), "absent.json")))
	require.Equal(t, 0, c.GetStats().Entries)
}

func TestClear(t *testing.T) {
	c := New(10)
	c.Set("https://a.go.jp/x", "x", 200, "text/html", 0)
	c.Get("https://a.go.jp/x")
	c.Clear()

	stats := c.GetStats()
	require.Equal(t, 0, stats.Entries)
	require.Equal(t, int64(0), stats.Hits)
}

// Package cache implements the LRU, TTL-bound response cache keyed by
// normalized URL, with optional persistence to a single JSON file so page
// content survives across crawl runs against the same targets.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hojonavi/hojokin-harvester/internal/queue"
)

// DefaultTTL applies when Set is called without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// Entry is one cached page. Owned exclusively by the cache.
type Entry struct {
	HTML        string        `json:"html"`
	URL         string        `json:"url"`
	Status      int           `json:"status"`
	ContentType string        `json:"content_type"`
	CachedAt    time.Time     `json:"cached_at"`
	TTL         time.Duration `json:"ttl"`
	Size        int           `json:"size"`
}

func (e Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CachedAt) >= e.TTL
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Cache is a thread-safe LRU page cache. Eviction happens on insert once
// maxSize entries exist; TTL expiry is checked lazily on read.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]Entry
	accessOrder []string
	maxSize     int
	defaultTTL  time.Duration
	hits        int64
	misses      int64

	now func() time.Time
}

// Option customizes cache construction.
type Option func(*Cache)

// WithDefaultTTL changes the TTL applied by Set when none is given.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.defaultTTL = ttl }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a cache holding at most maxSize entries.
func New(maxSize int, opts ...Option) *Cache {
	if maxSize <= 0 {
		maxSize = 100
	}
	c := &Cache{
		entries:    make(map[string]Entry),
		maxSize:    maxSize,
		defaultTTL: DefaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached entry for url, refreshing its recency. An expired
// entry is deleted on access and counts as a miss.
func (c *Cache) Get(rawURL string) (Entry, bool) {
	key := normalizeKey(rawURL)
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}
	if entry.expired(c.now()) {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses++
		return Entry{}, false
	}
	c.touch(key)
	c.hits++
	return entry, true
}

// Set stores a page under the normalized URL. A non-positive ttl uses the
// cache default. Inserting into a full cache evicts the least recently used
// entry.
func (c *Cache) Set(rawURL, html string, status int, contentType string, ttl time.Duration) {
	key := normalizeKey(rawURL)
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = Entry{
		HTML:        html,
		URL:         rawURL,
		Status:      status,
		ContentType: contentType,
		CachedAt:    c.now(),
		TTL:         ttl,
		Size:        len(html),
	}
	c.touch(key)
}

// Clear drops every entry and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	c.accessOrder = nil
	c.hits = 0
	c.misses = 0
}

// GetStats returns a snapshot of the counters.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	var bytes int64
	for _, e := range c.entries {
		bytes += int64(e.Size)
	}
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries), Bytes: bytes}
}

func (c *Cache) evictOldest() {
	if len(c.accessOrder) == 0 {
		return
	}
	oldest := c.accessOrder[0]
	c.accessOrder = c.accessOrder[1:]
	delete(c.entries, oldest)
}

// touch moves key to the most-recent end of the access order.
func (c *Cache) touch(key string) {
	c.removeFromOrder(key)
	c.accessOrder = append(c.accessOrder, key)
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.accessOrder {
		if k == key {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			return
		}
	}
}

func normalizeKey(rawURL string) string {
	normalized, err := queue.NormalizeURL(rawURL)
	if err != nil {
		return rawURL
	}
	return normalized
}

// persistedState is the on-disk JSON shape.
type persistedState struct {
	Entries     [][2]json.RawMessage `json:"entries"`
	AccessOrder []string             `json:"access_order"`
	Stats       persistedStats       `json:"stats"`
	SavedAt     time.Time            `json:"saved_at"`
}

type persistedStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Persist serializes the entire cache to path, writing a temp file first and
// renaming it into place.
func (c *Cache) Persist(path string) error {
	if path == "" {
		return fmt.Errorf("cache persist path is empty")
	}
	c.mu.Lock()
	state := persistedState{
		AccessOrder: append([]string(nil), c.accessOrder...),
		Stats:       persistedStats{Hits: c.hits, Misses: c.misses},
		SavedAt:     c.now(),
	}
	for _, key := range c.accessOrder {
		entry, ok := c.entries[key]
		if !ok {
			continue
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("marshal cache key: %w", err)
		}
		entryJSON, err := json.Marshal(entry)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		state.Entries = append(state.Entries, [2]json.RawMessage{keyJSON, entryJSON})
	}
	c.mu.Unlock()

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cache state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Load restores a persisted cache, silently discarding entries whose TTL has
// already elapsed by wall-clock comparison against the restored CachedAt. A
// missing file is not an error.
func (c *Cache) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	var state persistedState
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("unmarshal cache state: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	c.accessOrder = nil
	now := c.now()
	for _, pair := range state.Entries {
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(pair[1], &entry); err != nil {
			continue
		}
		if entry.expired(now) {
			continue
		}
		c.entries[key] = entry
	}
	for _, key := range state.AccessOrder {
		if _, ok := c.entries[key]; ok {
			c.accessOrder = append(c.accessOrder, key)
		}
	}
	c.hits = state.Stats.Hits
	c.misses = state.Stats.Misses
	return nil
}

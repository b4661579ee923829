package fetcher

import (
	"strings"
	"sync"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/jsonfile"
)

// CacheEntry holds the validators from the last 200 for a URL.
type CacheEntry struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"lastModified,omitempty"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

// Cache maps URLs to validators. Entries are never evicted automatically.
type Cache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]CacheEntry
}

// NewCache loads entries from path when it exists. An empty path keeps the cache in memory only.
func NewCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]CacheEntry)}
	if path == "" || !jsonfile.Exists(path) {
		return c, nil
	}
	if err := jsonfile.Read(path, &c.entries); err != nil {
		return nil, err
	}
	if c.entries == nil {
		c.entries = make(map[string]CacheEntry)
	}
	return c, nil
}

// Get returns the entry for url.
func (c *Cache) Get(url string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[url]
	return entry, ok
}

// Put stores entry and persists the cache.
func (c *Cache) Put(url string, entry CacheEntry) error {
	c.mu.Lock()
	c.entries[url] = entry
	c.mu.Unlock()
	return c.save()
}

// PruneByPrefix drops every entry whose URL starts with prefix and returns how many were removed.
func (c *Cache) PruneByPrefix(prefix string) (int, error) {
	c.mu.Lock()
	removed := 0
	for url := range c.entries {
		if strings.HasPrefix(url, prefix) {
			delete(c.entries, url)
			removed++
		}
	}
	c.mu.Unlock()
	if removed == 0 {
		return 0, nil
	}
	return removed, c.save()
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) save() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	snapshot := make(map[string]CacheEntry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()
	_, err := jsonfile.Write(c.path, snapshot)
	return err
}

package finance

import (
	"sync"
	"time"
)

// Chart image cache entry
type chartCacheEntry struct {
	createdAt time.Time
	image     []byte
}

const chartCacheTTL = 10 * time.Minute

// ChartCache keeps rendered PNGs for a while, keyed by run id.
type ChartCache struct {
	mu      sync.Mutex
	entries map[string]chartCacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewChartCache(ttl time.Duration) *ChartCache {
	if ttl <= 0 {
		ttl = chartCacheTTL
	}
	return &ChartCache{entries: map[string]chartCacheEntry{}, ttl: ttl, now: time.Now}
}

// Get returns a copy of a fresh entry. Expired entries are dropped.
func (c *ChartCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.createdAt.Add(c.ttl)) {
		delete(c.entries, key)
		return nil, false
	}
	img := make([]byte, len(entry.image))
	copy(img, entry.image)
	return img, true
}

func (c *ChartCache) Set(key string, img []byte) {
	c.mu.Lock()
	c.entries[key] = chartCacheEntry{createdAt: c.now(), image: img}
	c.mu.Unlock()
}

// GetOrRender returns the cached image for key or renders, stores and returns a new one.
func (c *ChartCache) GetOrRender(key string, render func() ([]byte, error)) ([]byte, error) {
	if img, ok := c.Get(key); ok {
		return img, nil
	}
	img, err := render()
	if err != nil {
		return nil, err
	}
	c.Set(key, img)
	return img, nil
}

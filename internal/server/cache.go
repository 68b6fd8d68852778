package server

import (
	"sync"
	"time"

	"github.com/user/gh-trending-go/internal/model"
)

// resultCache is a small TTL cache of crawl results keyed by
// (language, since). It saves the upstream from repeated identical crawls;
// a TTL of 0 disables caching entirely.
type resultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result    *model.CrawlResult
	expiresAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(req model.CrawlRequest) string {
	return req.Language + "|" + string(req.Since)
}

func (c *resultCache) get(req model.CrawlRequest) (*model.CrawlResult, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.entries[cacheKey(req)]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

func (c *resultCache) set(req model.CrawlRequest, result *model.CrawlResult) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	// Expired entries pile up only as fast as distinct (language, since)
	// pairs are requested; sweep them opportunistically on write.
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	c.entries[cacheKey(req)] = cacheEntry{result: result, expiresAt: now.Add(c.ttl)}
}

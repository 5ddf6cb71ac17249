package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type CacheItem struct {
	Value     interface{}
	ExpiresAt time.Time
}

// Cache is an in-memory TTL cache. Stop ends the cleanup goroutine.
type Cache struct {
	mu    sync.RWMutex
	items map[string]CacheItem
	stop  chan struct{}
	once  sync.Once
	now   func() time.Time
}

func New(cleanupEvery time.Duration) *Cache {
	if cleanupEvery <= 0 {
		cleanupEvery = time.Hour
	}
	c := &Cache{
		items: make(map[string]CacheItem),
		stop:  make(chan struct{}),
		now:   time.Now,
	}

	go c.cleanupLoop(cleanupEvery)

	return c
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = CacheItem{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

// Get returns a live entry. Expired entries are left for the cleanup loop.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || c.now().After(item.ExpiresAt) {
		return nil, false
	}

	return item.Value, true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// GenerateKey hashes the lowercased, trimmed parts into a stable key.
func GenerateKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
		}
	}
}

// Package cache keeps rendered list payloads for a short time so repeated
// list queries skip the store. Any catalog write clears it.
package cache

import (
	"strings"
	"sync"
	"time"
)

const defaultTTL = 5 * time.Second

type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

type entry struct {
	payload any
	expires time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// WithClock replaces the time source, for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(e.expires) {
		c.mu.Lock()
		// re-check: a fresh Set may have landed between the locks
		if cur, ok := c.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

func (c *Cache) Set(key string, payload any) {
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// DeletePrefix drops every key in one namespace, e.g. "tours:".
func (c *Cache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

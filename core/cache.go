package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache keeps compiled results by query text and parameters.
type Cache struct {
	cache *lru.TwoQueueCache[string, *Result]
}

// initCache initializes the cache
func (e *Engine) initCache() (err error) {
	e.cache = &Cache{}
	if e.conf.CacheSize < 0 {
		return nil
	}
	e.cache.cache, err = lru.New2Q[string, *Result](e.conf.CacheSize)
	return
}

// Get returns the value from the cache
func (c *Cache) Get(key string) (val *Result, fromCache bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

// Set sets the value in the cache
func (c *Cache) Set(key string, val *Result) {
	if c.cache == nil {
		return
	}
	c.cache.Add(key, val)
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

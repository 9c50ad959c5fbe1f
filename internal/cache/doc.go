// Package cache provides a generic LRU cache used to keep compiled GPU
// artifacts (shader bytecode, pipeline objects) alive across frames.
//
//	c := cache.New[string, int](64)
//	c.Set("key", 42)
//	value, ok := c.Get("key")
//
// Entries beyond the limit are evicted least recently used first. An
// optional eviction callback lets owners release GPU objects that fall out
// of the cache.
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache

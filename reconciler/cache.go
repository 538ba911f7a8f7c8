package reconciler

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value      any
	stale      bool
	generation uint64
	updatedAt  time.Time
	// patches made while the entry was stale, replayed over the next commit
	deferred []func(any) any
}

// Cache is the local query cache. Every write to a fresh entry bumps its
// generation; a fetch result is only committed when no other write
// happened since the fetch began, so an older response never overwrites a
// newer patch. A stale entry is already waiting on a refetch, so patches to
// it are replayed over the refetched value instead.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.value == nil {
		return nil, false
	}
	return e.value, true
}

// Fresh reports whether key holds a value that has not been invalidated.
func (c *Cache) Fresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.value != nil && !e.stale
}

func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.generation++
	e.value = value
	e.stale = false
	e.deferred = nil
	e.updatedAt = time.Now()
}

// Begin marks the start of a fetch for key and returns its generation.
func (c *Cache) Begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.generation++
	e.deferred = nil
	return e.generation
}

// Commit stores a fetch result unless the entry was written after Begin.
// Patches deferred since Begin are applied on top of value.
func (c *Cache) Commit(key string, generation uint64, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	if e.generation != generation {
		return false
	}
	for _, fn := range e.deferred {
		value = fn(value)
	}
	e.deferred = nil
	e.value = value
	e.stale = false
	e.updatedAt = time.Now()
	return true
}

// Patch rewrites the value at key in place. It does nothing when the key
// holds no value.
func (c *Cache) Patch(key string, fn func(any) any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.value == nil {
		return false
	}
	e.value = fn(e.value)
	if e.stale {
		e.deferred = append(e.deferred, fn)
	} else {
		e.generation++
	}
	e.updatedAt = time.Now()
	return true
}

// Invalidate marks every entry under prefix stale. Values stay readable.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			e.stale = true
			n++
		}
	}
	return n
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Keys returns the keys under prefix in lexical order.
func (c *Cache) Keys(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (c *Cache) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func getAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

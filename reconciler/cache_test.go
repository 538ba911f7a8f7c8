package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheDiscardsSupersededFetch(t *testing.T) {
	c := NewCache()
	older := c.Begin("k")
	newer := c.Begin("k")

	assert.True(t, c.Commit("k", newer, "new"))
	assert.False(t, c.Commit("k", older, "old"))

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestCachePatchWinsOverInFlightFetch(t *testing.T) {
	c := NewCache()
	c.Set("k", 1)
	gen := c.Begin("k")
	assert.True(t, c.Patch("k", func(v any) any { return v.(int) + 1 }))
	assert.False(t, c.Commit("k", gen, 100))

	v, _ := c.Get("k")
	assert.Equal(t, 2, v)
}

func TestCachePatchOnStaleEntryReplaysOverRefetch(t *testing.T) {
	c := NewCache()
	c.Set("k", []string{"a"})
	c.Invalidate("k")
	gen := c.Begin("k")
	appendB := func(v any) any {
		list := v.([]string)
		for _, s := range list {
			if s == "b" {
				return list
			}
		}
		return append([]string{"b"}, list...)
	}
	assert.True(t, c.Patch("k", appendB))

	v, _ := c.Get("k")
	assert.Equal(t, []string{"b", "a"}, v)

	assert.True(t, c.Commit("k", gen, []string{"a", "c"}))
	v, _ = c.Get("k")
	assert.Equal(t, []string{"b", "a", "c"}, v)
	assert.True(t, c.Fresh("k"))

	next := c.Begin("k")
	assert.True(t, c.Commit("k", next, []string{"a", "b", "c"}))
	v, _ = c.Get("k")
	assert.Equal(t, []string{"a", "b", "c"}, v)
}

func TestCacheInvalidateKeepsValue(t *testing.T) {
	c := NewCache()
	c.Set("tables:b1:1", "p1")
	c.Set("tables:b1:2", "p2")
	c.Set("areas:b1", "a")

	assert.Equal(t, 2, c.Invalidate("tables:b1:"))
	assert.False(t, c.Fresh("tables:b1:1"))
	assert.True(t, c.Fresh("areas:b1"))

	v, ok := c.Get("tables:b1:1")
	assert.True(t, ok)
	assert.Equal(t, "p1", v)
	assert.Equal(t, []string{"tables:b1:1", "tables:b1:2"}, c.Keys("tables:b1:"))
}

func TestCachePatchMissingKey(t *testing.T) {
	c := NewCache()
	assert.False(t, c.Patch("nope", func(v any) any { return v }))
}

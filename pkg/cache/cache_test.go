package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	c := New[string, int](4)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Inserting a fourth key evicts "a", the oldest.
	c.Set("d", 4)

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestGetProtectsFromEviction(t *testing.T) {
	c := New[string, int](3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	_, ok := c.Get("b")
	assert.True(t, ok)
	v, _ := c.Get("a")
	assert.Equal(t, 10, v)
}

func TestStats(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	assert.Equal(t, uint64(2), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, s.MissRate, 1e-9)
	assert.Equal(t, 1, s.Size)
	assert.Equal(t, 2, s.Capacity)
}

func TestClearKeepsCounters(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Get("a")
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Hits)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestHashedSharesEntriesByContent(t *testing.T) {
	h := NewHashed[string](4, nil)
	h.Set("同じ文章です。", "value")

	v, ok := h.Get("同じ文章です。")
	require.True(t, ok)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, h.Len())

	// Same content, same entry.
	h.Set("同じ文章です。", "updated")
	assert.Equal(t, 1, h.Len())
}

func TestHashedCustomKeyFunc(t *testing.T) {
	calls := 0
	h := NewHashed[int](4, func(s string) uint64 {
		calls++
		return uint64(len(s))
	})
	h.Set("ab", 1)
	v, ok := h.Get("cd") // same derived key under the custom func
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, calls)
}

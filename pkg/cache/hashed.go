package cache

import "hash/fnv"

// KeyFunc derives a fixed-size cache key from a potentially large string
// input, so cache identity is decoupled from the text it indexes.
type KeyFunc func(string) uint64

// FNV64 is the default key derivation.
func FNV64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Hashed is a string-keyed view over Cache that stores only hashed keys.
// Paragraph texts are cached through this so that two paragraphs with
// identical content share one entry without retaining the text itself.
type Hashed[V any] struct {
	inner *Cache[uint64, V]
	key   KeyFunc
}

// NewHashed creates a hashed cache. A nil key function selects FNV64.
func NewHashed[V any](capacity int, key KeyFunc) *Hashed[V] {
	if key == nil {
		key = FNV64
	}
	return &Hashed[V]{inner: New[uint64, V](capacity), key: key}
}

// Get looks up by hashed text and promotes the entry.
func (h *Hashed[V]) Get(text string) (V, bool) {
	return h.inner.Get(h.key(text))
}

// Set stores a value under the hashed text.
func (h *Hashed[V]) Set(text string, value V) {
	h.inner.Set(h.key(text), value)
}

// Clear drops all entries.
func (h *Hashed[V]) Clear() {
	h.inner.Clear()
}

// Len returns the current entry count.
func (h *Hashed[V]) Len() int {
	return h.inner.Len()
}

// Stats returns the underlying cache stats.
func (h *Hashed[V]) Stats() Stats {
	return h.inner.Stats()
}

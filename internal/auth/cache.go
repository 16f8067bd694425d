// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package auth

import "container/list"

// Validation cache configuration. Entries shorter than the minimum are not
// cached: trivial and near-empty inputs would otherwise pollute the cache
// while being cheap to recompute.
const (
	validationCacheCapacity = 1000
	minCacheableUsernameLen = 3
	minCacheablePasswordLen = 5
)

// cacheEntry pairs a raw input with its computed validation result.
type cacheEntry[V any] struct {
	key   string
	value V
}

// validationCache is a bounded LRU keyed by raw field input. Only the
// 1000-entry bound is a contract; the exact eviction order is not.
// It is not safe for concurrent use; the owning Session's lock guards it.
type validationCache[V any] struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

func newValidationCache[V any](capacity int) *validationCache[V] {
	return &validationCache[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// get retrieves a cached result and marks it recently used.
func (c *validationCache[V]) get(key string) (V, bool) {
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry[V]).value, true
	}
	var zero V
	return zero, false
}

// put inserts a result, evicting the least recently used entry when the
// capacity is exceeded.
func (c *validationCache[V]) put(key string, value V) {
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry[V]).value = value
		return
	}

	c.items[key] = c.order.PushFront(&cacheEntry[V]{key: key, value: value})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry[V]).key)
		}
	}
}

// len returns the number of cached entries.
func (c *validationCache[V]) len() int {
	return c.order.Len()
}

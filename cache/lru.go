// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides a small read-through LRU for immutable derived
// data, such as the key-hash recovered from an attestation signature.
package cache

import (
	"sync"

	"github.com/luxfi/geth/common/lru"
)

// LRU memoizes a fetch function over a bounded key space. It is only
// suitable for immutable mappings: entries are evicted, never invalidated.
type LRU[K comparable, V any] struct {
	lock  sync.Mutex
	cache *lru.Cache[K, V]
}

// NewLRU returns an LRU holding at most size entries.
func NewLRU[K comparable, V any](size int) *LRU[K, V] {
	return &LRU[K, V]{
		cache: lru.NewCache[K, V](size),
	}
}

// Get returns the cached value for key, fetching and caching it on a miss.
// Fetch errors are returned as-is and nothing is cached for the key.
func (c *LRU[K, V]) Get(key K, fetch func(K) (V, error)) (V, error) {
	c.lock.Lock()
	if value, ok := c.cache.Get(key); ok {
		c.lock.Unlock()
		return value, nil
	}
	c.lock.Unlock()

	value, err := fetch(key)
	if err != nil {
		var zero V
		return zero, err
	}

	c.lock.Lock()
	c.cache.Add(key, value)
	c.lock.Unlock()
	return value, nil
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.cache.Len()
}

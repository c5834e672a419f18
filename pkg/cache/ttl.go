// Package cache provides a size-bounded cache whose entries expire after a
// fixed window.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is safe for concurrent use. Concurrent writers for one key race and the
// last write wins.
type TTL[K comparable, V any] struct {
	lru *expirable.LRU[K, entry[V]]
	ttl time.Duration
	now func() time.Time
}

func NewTTL[K comparable, V any](size int, ttl time.Duration) *TTL[K, V] {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TTL[K, V]{
		lru: expirable.NewLRU[K, entry[V]](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached value and when it expires.
func (c *TTL[K, V]) Get(key K) (V, time.Time, bool) {
	e, ok := c.lru.Get(key)
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, time.Time{}, false
	}
	return e.value, e.expiresAt, true
}

func (c *TTL[K, V]) Set(key K, value V) {
	c.lru.Add(key, entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

func (c *TTL[K, V]) Len() int {
	return c.lru.Len()
}

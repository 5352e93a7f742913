// Package stream turns unreliable exchange sockets into consistent,
// concurrently-readable market state. Subscriptions are created lazily by
// a keyed cache, buffer and reconcile deltas by server sequence number,
// and hand out defensive copies to callers.
package stream

import (
	"context"
	"log/slog"
	"sync"
)

// Subscription is one live, self-contained market-data subscription.
// Snapshot must return a copy of the current state, never the live object.
type Subscription[V any] interface {
	Snapshot() (V, error)
	Alive() bool
	Close()
}

// Factory constructs the subscription for a key, performing the blocking
// initial fetch before returning.
type Factory[K comparable, V any] func(ctx context.Context, key K) (Subscription[V], error)

// Cache lazily creates and caches one live subscription per key, hiding
// transient failures from callers. A failed construction or copy evicts
// the entry and yields the fallback value; the next Get retries, which is
// the whole reconnect mechanism — there is no backoff timer.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	ctx      context.Context
	subs     map[K]Subscription[V]
	build    Factory[K, V]
	fallback func() V
}

// NewCache builds a cache whose subscriptions live under ctx. fallback
// produces the safe default returned when a subscription cannot be built
// or copied; nil means the zero value.
func NewCache[K comparable, V any](ctx context.Context, build Factory[K, V], fallback func() V) *Cache[K, V] {
	return &Cache[K, V]{
		ctx:      ctx,
		subs:     make(map[K]Subscription[V]),
		build:    build,
		fallback: fallback,
	}
}

func (c *Cache[K, V]) safeDefault() V {
	if c.fallback != nil {
		return c.fallback()
	}
	var zero V
	return zero
}

// Get returns a defensive copy of the subscription state for key,
// constructing the subscription first if it is absent or dead. Transport
// failures never escape: callers get the safe default plus a log line.
func (c *Cache[K, V]) Get(key K) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, err := c.liveLocked(key)
	if err != nil {
		slog.Warn("stream cache: subscription unavailable", slog.Any("key", key), slog.Any("error", err))
		return c.safeDefault()
	}

	v, err := sub.Snapshot()
	if err != nil {
		slog.Warn("stream cache: snapshot failed, evicting", slog.Any("key", key), slog.Any("error", err))
		sub.Close()
		delete(c.subs, key)
		return c.safeDefault()
	}
	return v
}

// Ensure constructs the subscription for key if none is live. Unlike Get
// it reports the construction error, which warm-up paths care about.
func (c *Cache[K, V]) Ensure(key K) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.liveLocked(key)
	return err
}

func (c *Cache[K, V]) liveLocked(key K) (Subscription[V], error) {
	sub, ok := c.subs[key]
	if ok && sub.Alive() {
		return sub, nil
	}
	if ok {
		sub.Close()
		delete(c.subs, key)
	}
	sub, err := c.build(c.ctx, key)
	if err != nil {
		return nil, err
	}
	c.subs[key] = sub
	return sub, nil
}

// Forget explicitly evicts and closes the subscription for key, e.g. when
// a pair is no longer of interest.
func (c *Cache[K, V]) Forget(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[key]; ok {
		sub.Close()
		delete(c.subs, key)
	}
}

// Len returns the number of cached subscriptions, live or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close tears down every subscription. The cache stays usable; subsequent
// Gets rebuild.
func (c *Cache[K, V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, sub := range c.subs {
		sub.Close()
		delete(c.subs, key)
	}
}

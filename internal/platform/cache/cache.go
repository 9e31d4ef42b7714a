// Package cache is the key-addressed cache of server resources and the
// synchronization protocol around it: memoized reads with in-flight
// deduplication, write-driven invalidation through a declared dependency
// registry, and interval polling for backend-driven state transitions.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FetchFunc loads a resource from the backend.
type FetchFunc func(ctx context.Context) (any, error)

// Key builds a composite cache key from its parts.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

type entry struct {
	ready chan struct{} // closed when the fetch resolves
	value any
	err   error
}

// Cache is a process-wide singleton for the life of the application session.
// Only the synchronization layer's read/write/invalidate operations mutate
// it; no other component touches cached data directly.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	deps    map[string]func(id string) []string
	logger  zerolog.Logger
}

func New(logger zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		deps:    make(map[string]func(id string) []string),
		logger:  logger,
	}
}

// Get returns the cached value for key, fetching it on a miss. Concurrent
// callers for a key already in flight share the same fetch: the network call
// is never duplicated. A failed fetch is not cached.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		select {
		case <-e.ready:
			return e.value, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e := &entry{ready: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	e.value, e.err = fetch(ctx)
	close(e.ready)

	if e.err != nil {
		// No negative caching: the next read retries the fetch.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	return e.value, e.err
}

// GetAs is a typed wrapper around Cache.Get.
func GetAs[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: entry %q holds %T, not the requested type", key, v)
	}
	return typed, nil
}

// Peek returns the cached value without fetching. It never blocks on an
// in-flight load.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	select {
	case <-e.ready:
		if e.err != nil {
			return nil, false
		}
		return e.value, true
	default:
		return nil, false
	}
}

// Invalidate drops the given keys. The next Get for each refetches lazily.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// InvalidatePrefix drops every key sharing the prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Clear drops every entry. Used on logout: a new identity must never observe
// the previous identity's data.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// DeclareDependents registers the cache keys affected by writes to a
// resource kind. prefixes receives the written resource's id and returns the
// key prefixes to invalidate.
func (c *Cache) DeclareDependents(kind string, prefixes func(id string) []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[kind] = prefixes
}

// WriteResolved must be called after a mutation of the given resource kind
// resolves. All declared dependents are invalidated so that every subsequent
// read observes post-write data.
func (c *Cache) WriteResolved(kind, id string) {
	c.mu.Lock()
	fn, ok := c.deps[kind]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug().Str("kind", kind).Msg("write resolved for kind with no declared dependents")
		return
	}
	for _, prefix := range fn(id) {
		c.InvalidatePrefix(prefix)
	}
}

// Subscribe polls key on a fixed interval until the returned cancel function
// runs or ctx is done. Each tick invalidates the key and refetches; onUpdate
// receives the fresh value. Poll failures are logged and skipped so a
// background refresh never disrupts the foreground. A tick resolving after
// cancellation is discarded.
func (c *Cache) Subscribe(ctx context.Context, key string, interval time.Duration, fetch FetchFunc, onUpdate func(any)) (cancel func()) {
	subCtx, stop := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			}

			c.Invalidate(key)
			v, err := c.Get(subCtx, key, fetch)
			if err != nil {
				c.logger.Debug().Err(err).Str("key", key).Msg("poll refresh failed")
				continue
			}
			// The originating view may have unmounted while the fetch was in
			// flight; its result is then discarded.
			select {
			case <-subCtx.Done():
				return
			default:
			}
			onUpdate(v)
		}
	}()

	return stop
}

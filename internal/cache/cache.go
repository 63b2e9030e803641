package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Hooks carries the metric callbacks observed on every cache lookup.
// Nil funcs are replaced with no-ops so callers can skip metrics in tests.
type Hooks struct {
	OnHit   func()
	OnMiss  func()
	OnError func()
}

// Cache is the read-through, fail-open layer between callers and the
// repository. Every backend error is caught here, logged, and treated as
// a miss: with the backend entirely unavailable, callers still get
// correct data from their loaders, just slower.
//
// Concurrent misses for the same key may both invoke the loader; the
// layer deliberately does not single-flight. The invariant it does hold
// is that its own invalidations happen before any subsequent read it
// serves, because Invalidate* calls the backend synchronously.
type Cache struct {
	store  Store
	logger *zap.Logger
	hooks  Hooks
}

func New(store Store, logger *zap.Logger, hooks Hooks) *Cache {
	if hooks.OnHit == nil {
		hooks.OnHit = func() {}
	}
	if hooks.OnMiss == nil {
		hooks.OnMiss = func() {}
	}
	if hooks.OnError == nil {
		hooks.OnError = func() {}
	}
	return &Cache{store: store, logger: logger, hooks: hooks}
}

// Get unmarshals the cached value into dest. ok=false means miss or
// backend error; dest is untouched in that case.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			c.hooks.OnMiss()
		} else {
			c.hooks.OnError()
			c.logger.Warn("cache get failed, falling through", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.hooks.OnError()
		c.logger.Warn("cache value corrupt, dropping", zap.String("key", key), zap.Error(err))
		_ = c.store.Delete(ctx, key)
		return false
	}
	c.hooks.OnHit()
	return true
}

// Set stores the value best-effort; failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	raw, err := json.Marshal(val)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.hooks.OnError()
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops the given keys, best-effort.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.hooks.OnError()
		c.logger.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidatePrefix drops every key under the prefix, best-effort.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if err := c.store.DeleteByPrefix(ctx, prefix); err != nil {
		c.hooks.OnError()
		c.logger.Warn("cache prefix invalidate failed", zap.String("prefix", prefix), zap.Error(err))
	}
}

// GetOrPopulate returns the cached value for key, or invokes loader on a
// miss, stores the result with the given TTL, and returns it. Loader
// errors are the caller's (repository) errors and propagate unchanged.
func GetOrPopulate[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	loaded, err := loader(ctx)
	if err != nil {
		return loaded, err
	}
	c.Set(ctx, key, loaded, ttl)
	return loaded, nil
}

// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/chatrelay/internal/port/cache"
)

// Cache combines an L1 (in-process) and L2 (shared) cache. L2 is the
// source of truth across replicas; L1 only shortens the read path.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache with the given L1 and L2 backends.
// l1Expire caps how long entries live in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2, backfilling L1 on an L2 hit. An unreachable L2
// degrades to a miss instead of failing the read.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "l2 cache read failed", "key", key, "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}

	if err := c.l1.Set(ctx, key, val, c.l1Expire); err != nil {
		slog.DebugContext(ctx, "l1 backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set writes L2 and then L1. L1 is written even when L2 fails so the
// local replica stays consistent; the L2 error is still returned.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l2Err := c.l2.Set(ctx, key, value, ttl)

	l1TTL := ttl
	if c.l1Expire > 0 && (l1TTL <= 0 || c.l1Expire < l1TTL) {
		l1TTL = c.l1Expire
	}
	if err := c.l1.Set(ctx, key, value, l1TTL); err != nil {
		return errors.Join(wrapL2(l2Err), fmt.Errorf("l1 set: %w", err))
	}
	return wrapL2(l2Err)
}

// Delete removes the key from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	var errs []error
	if err := c.l2.Delete(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("l2 delete: %w", err))
	}
	if err := c.l1.Delete(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("l1 delete: %w", err))
	}
	return errors.Join(errs...)
}

func wrapL2(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("l2 set: %w", err)
}

var _ cache.Cache = (*Cache)(nil)

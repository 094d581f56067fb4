// Package metacache keeps recently resolved item metadata in memory.
package metacache

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/recdex/internal/domain/item"
)

var errReadOnly = errors.New("metadata cache has no writer")

// DefaultSize is used when the configured size is not positive.
const DefaultSize = 10_000

// lookuper is the consumer interface for the metadata source (ISP).
type lookuper interface {
	LookupItem(ctx context.Context, itemID int64) (item.Metadata, error)
}

// writer is the consumer interface for persisting metadata (ISP).
type writer interface {
	PutItem(ctx context.Context, m item.Metadata) error
}

// CachedLookup caches successful lookups. Errors (including not-found) are never cached,
// so a later PutItem becomes visible without invalidation.
type CachedLookup struct {
	inner      lookuper
	writer     writer
	cache      *lru.Cache[int64, item.Metadata]
	cacheTotal *prometheus.CounterVec
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(inner lookuper, size int, cacheTotal *prometheus.CounterVec) (*CachedLookup, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[int64, item.Metadata](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &CachedLookup{inner: inner, cache: cache, cacheTotal: cacheTotal}, nil
}

// WithWriter enables PutItem write-through to w.
func (c *CachedLookup) WithWriter(w writer) *CachedLookup {
	c.writer = w
	return c
}

// PutItem persists metadata and drops the stale entry, so the next lookup reads the new row.
func (c *CachedLookup) PutItem(ctx context.Context, m item.Metadata) error {
	if c.writer == nil {
		return errReadOnly
	}
	if err := c.writer.PutItem(ctx, m); err != nil {
		return err //nolint:wrapcheck // decorator is transparent
	}
	c.cache.Remove(m.ID())
	return nil
}

// LookupItem returns cached metadata or asks the inner source.
func (c *CachedLookup) LookupItem(ctx context.Context, itemID int64) (item.Metadata, error) {
	if m, ok := c.cache.Get(itemID); ok {
		c.incCache("hit")
		return m, nil
	}
	c.incCache("miss")

	m, err := c.inner.LookupItem(ctx, itemID)
	if err != nil {
		return item.Metadata{}, err //nolint:wrapcheck // decorator is transparent
	}
	c.cache.Add(itemID, m)
	return m, nil
}

// Invalidate drops one entry, e.g. after the item was rewritten.
func (c *CachedLookup) Invalidate(itemID int64) {
	c.cache.Remove(itemID)
}

// Len returns the number of cached entries.
func (c *CachedLookup) Len() int { return c.cache.Len() }

func (c *CachedLookup) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

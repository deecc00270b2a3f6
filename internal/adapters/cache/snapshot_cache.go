// Package cache puts a short-lived snapshot cache in front of the exchange.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/metrics"
)

const DefaultMaxEntries = 256

// Source is the upstream being cached; market.SnapshotSource has the same shape.
type Source interface {
	GetSnapshot(ctx context.Context, ticker domain.TickerSpec, levels int) (*domain.Snapshot, error)
}

// Remote is an optional shared tier. Get returns nil, nil on a miss.
type Remote interface {
	Get(ctx context.Context, key string) (*domain.Snapshot, error)
	Set(ctx context.Context, key string, snap *domain.Snapshot, ttl time.Duration) error
}

// SnapshotCache serves snapshots younger than ttl from memory, then from the
// remote tier, and only then from the source. Cached snapshots are shared and
// must not be mutated.
type SnapshotCache struct {
	source Source
	local  *BoundedLRUCache[string, *domain.Snapshot]
	remote Remote
	ttl    time.Duration
}

type Option func(*SnapshotCache)

func WithRemote(r Remote) Option {
	return func(c *SnapshotCache) { c.remote = r }
}

func WithMaxEntries(n int) Option {
	return func(c *SnapshotCache) {
		c.local = NewBoundedLRUCache[string, *domain.Snapshot](n, c.ttl)
	}
}

func NewSnapshotCache(source Source, ttl time.Duration, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		source: source,
		ttl:    ttl,
		local:  NewBoundedLRUCache[string, *domain.Snapshot](DefaultMaxEntries, ttl),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(ticker domain.TickerSpec, levels int) string {
	key := ticker.Pair.Key() + ":" + strconv.Itoa(levels)
	if ticker.EcosystemBook {
		key += ":eco"
	}
	return key
}

func (c *SnapshotCache) GetSnapshot(ctx context.Context, ticker domain.TickerSpec, levels int) (*domain.Snapshot, error) {
	if c.ttl <= 0 {
		return c.source.GetSnapshot(ctx, ticker, levels)
	}
	key := cacheKey(ticker, levels)

	if snap, ok := c.local.Get(key); ok {
		metrics.SnapshotCacheRequests.WithLabelValues("local", "hit").Inc()
		return snap, nil
	}
	metrics.SnapshotCacheRequests.WithLabelValues("local", "miss").Inc()

	if c.remote != nil {
		snap, err := c.remote.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("key", key).Msg("[SnapshotCache] remote lookup failed")
			metrics.SnapshotCacheRequests.WithLabelValues("remote", "error").Inc()
		case snap != nil:
			metrics.SnapshotCacheRequests.WithLabelValues("remote", "hit").Inc()
			c.local.Set(key, snap)
			return snap, nil
		default:
			metrics.SnapshotCacheRequests.WithLabelValues("remote", "miss").Inc()
		}
	}

	snap, err := c.source.GetSnapshot(ctx, ticker, levels)
	if err != nil {
		return nil, err
	}
	c.local.Set(key, snap)
	metrics.SnapshotCacheSize.Set(float64(c.local.Size()))

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, snap, c.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("[SnapshotCache] remote store failed")
		}
	}
	return snap, nil
}

// Invalidate drops every locally cached snapshot. The remote tier expires on its own.
func (c *SnapshotCache) Invalidate() {
	c.local.Clear()
	metrics.SnapshotCacheSize.Set(0)
}

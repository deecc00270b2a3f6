package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/hxuan190/sor-engine/internal/domain"
)

var strk = domain.TickerSpec{Pair: domain.TradedPair{Base: "STRK", Quote: "AUSDC"}}

type countingSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSource) GetSnapshot(_ context.Context, ticker domain.TickerSpec, _ int) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Snapshot{
		Pair:  ticker.Pair,
		MsgID: uint64(s.calls),
		Bids:  []domain.PriceLevel{{Price: uint256.NewInt(100), Volume: uint256.NewInt(5)}},
	}, nil
}

type mapRemote struct {
	snaps map[string]*domain.Snapshot
	err   error
}

func (m *mapRemote) Get(_ context.Context, key string) (*domain.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snaps[key], nil
}

func (m *mapRemote) Set(_ context.Context, key string, snap *domain.Snapshot, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.snaps[key] = snap
	return nil
}

func TestLRUExpiry(t *testing.T) {
	c := NewBoundedLRUCache[string, int](2, time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	// a was promoted, so b is evicted
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}
	c.Delete("c")
	if c.Size() != 0 {
		t.Errorf("size after delete = %d", c.Size())
	}
}

func TestLRUNoTTL(t *testing.T) {
	c := NewBoundedLRUCache[int, int](4, 0)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }
	c.Set(1, 1)
	now = now.Add(time.Hour)
	if _, ok := c.Get(1); !ok {
		t.Error("entry without ttl expired")
	}
	c.Clear()
	if c.Size() != 0 {
		t.Error("Clear left entries")
	}
}

func TestSnapshotCacheHitsLocal(t *testing.T) {
	src := &countingSource{}
	c := NewSnapshotCache(src, time.Minute)
	ctx := context.Background()

	a, err := c.GetSnapshot(ctx, strk, 10)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.GetSnapshot(ctx, strk, 10)
	if a != b || src.calls != 1 {
		t.Errorf("calls = %d, same snapshot = %v", src.calls, a == b)
	}
	// depth is part of the key
	if _, err := c.GetSnapshot(ctx, strk, 5); err != nil || src.calls != 2 {
		t.Errorf("calls = %d, err = %v", src.calls, err)
	}
	c.Invalidate()
	c.GetSnapshot(ctx, strk, 10)
	if src.calls != 3 {
		t.Errorf("calls after invalidate = %d", src.calls)
	}
}

func TestSnapshotCacheDisabled(t *testing.T) {
	src := &countingSource{}
	c := NewSnapshotCache(src, 0)
	c.GetSnapshot(context.Background(), strk, 10)
	c.GetSnapshot(context.Background(), strk, 10)
	if src.calls != 2 {
		t.Errorf("calls = %d, want pass-through", src.calls)
	}
}

func TestSnapshotCacheErrorsNotCached(t *testing.T) {
	src := &countingSource{err: domain.ErrSnapshotUnavailable}
	c := NewSnapshotCache(src, time.Minute)
	if _, err := c.GetSnapshot(context.Background(), strk, 10); !errors.Is(err, domain.ErrSnapshotUnavailable) {
		t.Fatalf("err = %v", err)
	}
	src.err = nil
	if _, err := c.GetSnapshot(context.Background(), strk, 10); err != nil || src.calls != 2 {
		t.Errorf("calls = %d, err = %v", src.calls, err)
	}
}

func TestSnapshotCacheRemoteTier(t *testing.T) {
	remote := &mapRemote{snaps: map[string]*domain.Snapshot{}}
	warm := &domain.Snapshot{Pair: strk.Pair, MsgID: 99}
	remote.snaps[cacheKey(strk, 10)] = warm

	src := &countingSource{}
	c := NewSnapshotCache(src, time.Minute, WithRemote(remote))
	snap, err := c.GetSnapshot(context.Background(), strk, 10)
	if err != nil || snap.MsgID != 99 || src.calls != 0 {
		t.Fatalf("snap = %+v err = %v calls = %d", snap, err, src.calls)
	}

	eth := domain.TickerSpec{Pair: domain.TradedPair{Base: "AETH", Quote: "AUSDC"}, EcosystemBook: true}
	if _, err := c.GetSnapshot(context.Background(), eth, 10); err != nil {
		t.Fatal(err)
	}
	if remote.snaps["AETH-AUSDC:10:eco"] == nil {
		t.Error("fetched snapshot not written to remote tier")
	}
}

func TestSnapshotCacheRemoteDown(t *testing.T) {
	src := &countingSource{}
	c := NewSnapshotCache(src, time.Minute, WithRemote(&mapRemote{err: errors.New("connection refused")}))
	if _, err := c.GetSnapshot(context.Background(), strk, 10); err != nil || src.calls != 1 {
		t.Errorf("calls = %d err = %v", src.calls, err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := NewRedisStoreFromClient(rdb)
	defer store.Close()

	src := &countingSource{}
	c := NewSnapshotCache(src, time.Minute, WithRemote(store))
	if _, err := c.GetSnapshot(context.Background(), strk, 10); err != nil {
		t.Fatalf("redis outage must fall through to the source: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("calls = %d", src.calls)
	}
}

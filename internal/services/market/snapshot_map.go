package market

import (
	"sync"

	"github.com/hxuan190/sor-engine/internal/domain"
)

const numShards = 16

// ShardedSnapshotMap holds the latest snapshot per market, sharded to keep
// the sweeper and request paths off a single lock.
type ShardedSnapshotMap struct {
	shards [numShards]snapshotShard
}

type snapshotShard struct {
	mu    sync.RWMutex
	snaps map[domain.TradedPair]*domain.Snapshot
}

func NewShardedSnapshotMap() *ShardedSnapshotMap {
	m := &ShardedSnapshotMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].snaps = make(map[domain.TradedPair]*domain.Snapshot)
	}
	return m
}

// FNV-1a over both symbols
func (m *ShardedSnapshotMap) getShard(pair domain.TradedPair) *snapshotShard {
	h := uint32(2166136261)
	for _, s := range [2]domain.Asset{pair.Base, pair.Quote} {
		for i := 0; i < len(s); i++ {
			h ^= uint32(s[i])
			h *= 16777619
		}
	}
	return &m.shards[h%numShards]
}

func (m *ShardedSnapshotMap) Get(pair domain.TradedPair) (*domain.Snapshot, bool) {
	shard := m.getShard(pair)
	shard.mu.RLock()
	snap, ok := shard.snaps[pair]
	shard.mu.RUnlock()
	return snap, ok
}

func (m *ShardedSnapshotMap) Set(pair domain.TradedPair, snap *domain.Snapshot) {
	shard := m.getShard(pair)
	shard.mu.Lock()
	shard.snaps[pair] = snap
	shard.mu.Unlock()
}

func (m *ShardedSnapshotMap) Delete(pair domain.TradedPair) {
	shard := m.getShard(pair)
	shard.mu.Lock()
	delete(shard.snaps, pair)
	shard.mu.Unlock()
}

// Len returns total count across all shards
func (m *ShardedSnapshotMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].snaps)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// Range stops when f returns false. Each shard is read-locked while visited.
func (m *ShardedSnapshotMap) Range(f func(pair domain.TradedPair, snap *domain.Snapshot) bool) {
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for k, v := range m.shards[i].snaps {
			if !f(k, v) {
				m.shards[i].mu.RUnlock()
				return
			}
		}
		m.shards[i].mu.RUnlock()
	}
}

func (m *ShardedSnapshotMap) GetAll() []*domain.Snapshot {
	result := make([]*domain.Snapshot, 0, m.Len())
	m.Range(func(_ domain.TradedPair, snap *domain.Snapshot) bool {
		result = append(result, snap)
		return true
	})
	return result
}

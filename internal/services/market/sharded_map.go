package market

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/quote-engine/internal/domain"
)

const numShards = 16

// ShardedPoolMap is a sharded map for pools to reduce lock contention.
// Stored pools are replaced wholesale on update and never mutated in place.
type ShardedPoolMap struct {
	shards [numShards]poolShard
}

type poolShard struct {
	mu    sync.RWMutex
	pools map[solana.PublicKey]*domain.Pool
}

// NewShardedPoolMap creates a new sharded pool map
func NewShardedPoolMap() *ShardedPoolMap {
	m := &ShardedPoolMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].pools = make(map[solana.PublicKey]*domain.Pool)
	}
	return m
}

// getShard returns the shard for a given key
func (m *ShardedPoolMap) getShard(key solana.PublicKey) *poolShard {
	// first byte of a PDA is uniformly distributed
	idx := key[0] % numShards
	return &m.shards[idx]
}

// Get retrieves a pool by address
func (m *ShardedPoolMap) Get(key solana.PublicKey) (*domain.Pool, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	pool, ok := shard.pools[key]
	shard.mu.RUnlock()
	return pool, ok
}

// Set stores a pool
func (m *ShardedPoolMap) Set(key solana.PublicKey, pool *domain.Pool) {
	shard := m.getShard(key)
	shard.mu.Lock()
	shard.pools[key] = pool
	shard.mu.Unlock()
}

// Update replaces the pool at key with fn's result while holding the shard
// lock. fn receives the current pool and must return a new value; it is not
// called when key is absent.
func (m *ShardedPoolMap) Update(key solana.PublicKey, fn func(pool *domain.Pool) *domain.Pool) bool {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	pool, ok := shard.pools[key]
	if !ok {
		return false
	}
	shard.pools[key] = fn(pool)
	return true
}

// Len returns total count across all shards
func (m *ShardedPoolMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].pools)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// Range iterates over all pools (acquires locks per shard)
func (m *ShardedPoolMap) Range(f func(key solana.PublicKey, pool *domain.Pool) bool) {
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for k, v := range m.shards[i].pools {
			if !f(k, v) {
				m.shards[i].mu.RUnlock()
				return
			}
		}
		m.shards[i].mu.RUnlock()
	}
}

// GetAll returns all pools as a slice
func (m *ShardedPoolMap) GetAll() []*domain.Pool {
	result := make([]*domain.Pool, 0, m.Len())
	m.Range(func(_ solana.PublicKey, pool *domain.Pool) bool {
		result = append(result, pool)
		return true
	})
	return result
}

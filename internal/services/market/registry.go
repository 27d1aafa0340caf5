package market

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/quote-engine/internal/domain"
)

// Registry is the in-memory pool curve-state source.
type Registry struct {
	pools *ShardedPoolMap
}

func NewRegistry() *Registry {
	return &Registry{pools: NewShardedPoolMap()}
}

// Put stores a validated copy of pool.
func (r *Registry) Put(pool *domain.Pool) error {
	if err := pool.Validate(); err != nil {
		return fmt.Errorf("pool %s: %w", pool.Address, err)
	}
	stored := *pool
	stored.Curve = pool.Curve.Clone()
	stored.Curve.Ticks = append([]domain.Tick(nil), pool.Curve.Ticks...)
	stored.UpdateFlags()
	r.pools.Set(stored.Address, &stored)
	return nil
}

// SetActive toggles a pool. Inactive pools do not resolve for quotes.
func (r *Registry) SetActive(addr solana.PublicKey, active bool) bool {
	return r.pools.Update(addr, func(pool *domain.Pool) *domain.Pool {
		updated := *pool
		updated.SetActive(active)
		return &updated
	})
}

func (r *Registry) Get(addr solana.PublicKey) (*domain.Pool, bool) {
	return r.pools.Get(addr)
}

func (r *Registry) Len() int {
	return r.pools.Len()
}

// ReadyCount returns the number of pools that can serve quotes.
func (r *Registry) ReadyCount() int {
	n := 0
	r.pools.Range(func(_ solana.PublicKey, pool *domain.Pool) bool {
		if pool.IsReady() {
			n++
		}
		return true
	})
	return n
}

// All returns every pool ordered by address.
func (r *Registry) All() []*domain.Pool {
	pools := r.pools.GetAll()
	sort.Slice(pools, func(i, j int) bool {
		return bytes.Compare(pools[i].Address[:], pools[j].Address[:]) < 0
	})
	return pools
}

// CurveState returns an independent copy of a ready pool's curve.
func (r *Registry) CurveState(_ context.Context, addr solana.PublicKey) (*domain.CurveState, error) {
	pool, ok := r.pools.Get(addr)
	if !ok {
		return nil, fmt.Errorf("%w: pool %s not found", domain.ErrUnresolvedPool, addr)
	}
	if !pool.IsReady() {
		return nil, fmt.Errorf("%w: pool %s is not active", domain.ErrUnresolvedPool, addr)
	}
	return pool.Curve.Clone(), nil
}

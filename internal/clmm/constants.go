// Package clmm implements concentrated-liquidity curve math on Q64.96 square
// root prices. Rounding follows the on-chain reference bit for bit.
package clmm

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/hxuan190/quote-engine/internal/domain"
)

const (
	MinTick = domain.MinTick
	MaxTick = domain.MaxTick

	// FeePips is the fee denominator: one pip is 1e-6.
	FeePips = 1_000_000
)

var (
	// MinSqrtRatio is GetSqrtRatioAtTick(MinTick).
	MinSqrtRatio = uint256.NewInt(4295128739)
	// MaxSqrtRatio is GetSqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

	MaxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	MaxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))
	MaxUint256 = new(uint256.Int).SetAllOne()

	// MaxSignedAmount bounds trade amounts so they fit a signed int256.
	MaxSignedAmount = new(uint256.Int).Lsh(uint256.NewInt(1), 255)

	u256FeePips = uint256.NewInt(FeePips)
	u256One     = uint256.NewInt(1)
)

var uint256Pool = sync.Pool{
	New: func() interface{} {
		return new(uint256.Int)
	},
}

// GetU256 gets a scratch uint256.Int from the pool.
func GetU256() *uint256.Int {
	return uint256Pool.Get().(*uint256.Int)
}

// PutU256 returns a scratch value to the pool.
func PutU256(v *uint256.Int) {
	v.Clear()
	uint256Pool.Put(v)
}

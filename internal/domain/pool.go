package domain

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	maxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	q192       = new(big.Int).Lsh(big.NewInt(1), 192)
)

// Tick range of a Q64.96 curve and the widest tick spacing a pool may use.
const (
	MinTick        int32 = -887272
	MaxTick        int32 = 887272
	MaxTickSpacing int32 = 16384
)

// Tick is an initialized tick boundary. LiquidityNet is the signed change of
// in-range liquidity when the price crosses the tick moving up.
type Tick struct {
	Index        int32    `json:"index"`
	LiquidityNet *big.Int `json:"liquidityNet"`
}

// CurveState is the snapshot of a pool's liquidity curve that a swap walks.
// Values are treated as immutable once handed out: the simulator works on a
// Clone and returns a new CurveState.
type CurveState struct {
	SqrtPriceX96 *uint256.Int
	Liquidity    *uint256.Int
	Tick         int32
	TickSpacing  int32
	Fee          uint32 // pips
	// Ticks is sorted by Index ascending. Shared between clones, never mutated.
	Ticks []Tick
}

// Clone returns a copy whose price and liquidity can be modified freely.
func (s *CurveState) Clone() *CurveState {
	if s == nil {
		return nil
	}
	c := *s
	if s.SqrtPriceX96 != nil {
		c.SqrtPriceX96 = new(uint256.Int).Set(s.SqrtPriceX96)
	}
	if s.Liquidity != nil {
		c.Liquidity = new(uint256.Int).Set(s.Liquidity)
	}
	return &c
}

// Validate checks the structural invariants of a snapshot. Price range checks
// live in the clmm package.
func (s *CurveState) Validate() error {
	if s == nil || s.SqrtPriceX96 == nil || s.Liquidity == nil {
		return fmt.Errorf("%w: missing price or liquidity", ErrInvalidCurveState)
	}
	if s.TickSpacing <= 0 || s.TickSpacing > MaxTickSpacing {
		return fmt.Errorf("%w: tick spacing %d", ErrInvalidCurveState, s.TickSpacing)
	}
	if s.Fee >= FeeDenominator {
		return fmt.Errorf("%w: fee %d", ErrInvalidCurveState, s.Fee)
	}
	if s.Liquidity.Gt(maxUint128) {
		return fmt.Errorf("%w: liquidity exceeds uint128", ErrInvalidCurveState)
	}
	for i, t := range s.Ticks {
		if t.LiquidityNet == nil {
			return fmt.Errorf("%w: tick %d has no liquidityNet", ErrInvalidCurveState, t.Index)
		}
		if t.Index < MinTick || t.Index > MaxTick {
			return fmt.Errorf("%w: tick %d out of range", ErrInvalidCurveState, t.Index)
		}
		if t.Index%s.TickSpacing != 0 {
			return fmt.Errorf("%w: tick %d not a multiple of spacing %d", ErrInvalidCurveState, t.Index, s.TickSpacing)
		}
		if i > 0 && s.Ticks[i-1].Index >= t.Index {
			return fmt.Errorf("%w: ticks not strictly ascending at %d", ErrInvalidCurveState, t.Index)
		}
	}
	return nil
}

// Price returns token1 per token0 in raw units.
func (s *CurveState) Price() decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	return SqrtPriceToPrice(s.SqrtPriceX96)
}

// SqrtPriceToPrice converts a Q64.96 square root price to token1 per token0.
func SqrtPriceToPrice(sqrtPriceX96 *uint256.Int) decimal.Decimal {
	if sqrtPriceX96 == nil {
		return decimal.Zero
	}
	sq := sqrtPriceX96.ToBig()
	sq.Mul(sq, sq)
	return decimal.NewFromBigInt(sq, 0).DivRound(decimal.NewFromBigInt(q192, 0), 18)
}

type PoolFlags uint64

const (
	FlagActive PoolFlags = 1 << 0
	FlagReady  PoolFlags = 1 << 1
	FlagLowFee PoolFlags = 1 << 2
)

const FlagReadyMask = FlagActive | FlagReady

// Pool is a registry record: identity plus the latest curve snapshot.
type Pool struct {
	Address         solana.PublicKey `json:"address"`
	Token0          solana.PublicKey `json:"token0"`
	Token1          solana.PublicKey `json:"token1"`
	Fee             uint32           `json:"fee"`
	Active          bool             `json:"active"`
	LastUpdatedSlot uint64           `json:"lastUpdatedSlot"`
	Curve           *CurveState      `json:"-"`
	Flags           PoolFlags        `json:"-"`
}

func (p *Pool) IsReady() bool {
	return p.Flags&FlagReadyMask == FlagReadyMask
}

func (p *Pool) UpdateFlags() {
	p.Flags = 0
	if p.Active {
		p.Flags |= FlagActive
	}
	if p.Curve != nil && p.Curve.SqrtPriceX96 != nil && !p.Curve.SqrtPriceX96.IsZero() {
		p.Flags |= FlagReady
	}
	if p.Fee < 3000 {
		p.Flags |= FlagLowFee
	}
}

func (p *Pool) SetActive(active bool) {
	p.Active = active
	if active {
		p.Flags |= FlagActive
	} else {
		p.Flags &^= FlagActive
	}
}

func (p *Pool) HasFlags(mask PoolFlags) bool {
	return p.Flags&mask == mask
}

// Validate checks identity fields against the curve snapshot.
func (p *Pool) Validate() error {
	if p.Token0.Equals(p.Token1) {
		return fmt.Errorf("%w: identical tokens", ErrInvalidCurveState)
	}
	t0, _ := SortTokens(p.Token0, p.Token1)
	if !t0.Equals(p.Token0) {
		return fmt.Errorf("%w: tokens not sorted", ErrInvalidCurveState)
	}
	if err := p.Curve.Validate(); err != nil {
		return err
	}
	if p.Curve.Fee != p.Fee {
		return fmt.Errorf("%w: curve fee %d != pool fee %d", ErrInvalidCurveState, p.Curve.Fee, p.Fee)
	}
	return nil
}

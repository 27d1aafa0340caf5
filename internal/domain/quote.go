package domain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// FillStatus tells whether a simulated trade consumed the whole requested amount.
type FillStatus uint8

const (
	StatusFilled FillStatus = iota
	StatusPartialFill
)

func (s FillStatus) String() string {
	switch s {
	case StatusFilled:
		return "filled"
	case StatusPartialFill:
		return "partial"
	default:
		return "unknown"
	}
}

// PartialReason explains a StatusPartialFill.
type PartialReason uint8

const (
	PartialNone PartialReason = iota
	PartialPriceLimit
	PartialLiquidityExhausted
)

func (r PartialReason) String() string {
	switch r {
	case PartialPriceLimit:
		return "price_limit"
	case PartialLiquidityExhausted:
		return "liquidity_exhausted"
	default:
		return ""
	}
}

// SingleQuote is the result of a one-pool quote.
type SingleQuote struct {
	Pool              solana.PublicKey
	AmountIn          *uint256.Int
	AmountOut         *uint256.Int
	FeeAmount         *uint256.Int
	SqrtPriceX96After *uint256.Int
	PriceImpactBps    uint16
	TicksCrossed      uint32
	ZeroForOne        bool
	Status            FillStatus
	PartialReason     PartialReason
	State             *CurveState
}

type HopQuote struct {
	Hop               Hop
	Pool              solana.PublicKey
	AmountIn          *uint256.Int
	AmountOut         *uint256.Int
	FeeAmount         *uint256.Int
	SqrtPriceX96After *uint256.Int
	// PriceImpactBps compares the execution price, fee excluded, with the
	// price before the hop.
	PriceImpactBps uint16
	TicksCrossed   uint32
	Status         FillStatus
}

// MultiHopQuote is the result of a quote across a route. Amounts has one more
// entry than Hops: Amounts[0] is the route input and Amounts[len(Hops)] the
// route output. States is only filled by the stateful entry points.
type MultiHopQuote struct {
	ExactIn bool
	Hops    []HopQuote
	Amounts []*uint256.Int
	States  []*CurveState
	Partial bool
}

func (q *MultiHopQuote) AmountIn() *uint256.Int {
	return q.Amounts[0]
}

func (q *MultiHopQuote) AmountOut() *uint256.Int {
	return q.Amounts[len(q.Amounts)-1]
}

// TotalTicksCrossed sums ticks crossed over all hops.
func (q *MultiHopQuote) TotalTicksCrossed() uint32 {
	var n uint32
	for _, h := range q.Hops {
		n += h.TicksCrossed
	}
	return n
}

// PriceImpactBps compounds the hop impacts: a route keeps the product of what
// each hop keeps.
func (q *MultiHopQuote) PriceImpactBps() uint16 {
	keep := uint64(10000)
	for _, h := range q.Hops {
		bps := uint64(h.PriceImpactBps)
		if bps > 10000 {
			bps = 10000
		}
		keep = keep * (10000 - bps) / 10000
	}
	return uint16(10000 - keep)
}

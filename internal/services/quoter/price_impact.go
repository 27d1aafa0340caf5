package quoter

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Price impact thresholds in basis points
const (
	PriceImpactLow      uint16 = 100
	PriceImpactModerate uint16 = 300
	PriceImpactHigh     uint16 = 500
	PriceImpactExtreme  uint16 = 1000
)

type PriceImpactSeverity string

const (
	SeverityNone     PriceImpactSeverity = "none"     // < 1%
	SeverityLow      PriceImpactSeverity = "low"      // 1-3%
	SeverityModerate PriceImpactSeverity = "moderate" // 3-5%
	SeverityHigh     PriceImpactSeverity = "high"     // 5-10%
	SeverityExtreme  PriceImpactSeverity = "extreme"  // > 10%
)

func GetPriceImpactSeverity(priceImpactBps uint16) PriceImpactSeverity {
	switch {
	case priceImpactBps < PriceImpactLow:
		return SeverityNone
	case priceImpactBps < PriceImpactModerate:
		return SeverityLow
	case priceImpactBps < PriceImpactHigh:
		return SeverityModerate
	case priceImpactBps < PriceImpactExtreme:
		return SeverityHigh
	default:
		return SeverityExtreme
	}
}

// GetPriceImpactWarning returns a user facing warning, empty below 1%.
func GetPriceImpactWarning(priceImpactBps uint16) string {
	switch GetPriceImpactSeverity(priceImpactBps) {
	case SeverityLow:
		return "Low price impact"
	case SeverityModerate:
		return "Moderate price impact - consider reducing trade size"
	case SeverityHigh:
		return "High price impact - you may receive significantly less tokens"
	case SeverityExtreme:
		return "EXTREME price impact - this trade will severely impact the market price"
	default:
		return ""
	}
}

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// CalculatePriceImpact returns (1 - effective/spot) * 10000 for one hop, where
// spot comes from sqrtPriceBefore and effective is amountOut over the input
// net of fees. Both prices are in output units per input unit. A fill at or
// better than spot has zero impact.
//
// For zero-for-one the ratio is out * 2^192 / (net * sqrtP^2), otherwise it is
// out * sqrtP^2 / (net * 2^192). The products exceed 256 bits.
func CalculatePriceImpact(amountIn, amountOut, feeAmount, sqrtPriceBefore *uint256.Int, zeroForOne bool) uint16 {
	if amountIn == nil || amountOut == nil || sqrtPriceBefore == nil || sqrtPriceBefore.IsZero() {
		return 0
	}
	if feeAmount == nil {
		feeAmount = new(uint256.Int)
	}
	if !amountIn.Gt(feeAmount) || amountOut.IsZero() {
		return 0
	}

	net := new(uint256.Int).Sub(amountIn, feeAmount).ToBig()
	out := amountOut.ToBig()
	sq := sqrtPriceBefore.ToBig()
	priceX192 := new(big.Int).Mul(sq, sq)

	num := new(big.Int)
	den := new(big.Int)
	if zeroForOne {
		num.Mul(out, q192)
		den.Mul(net, priceX192)
	} else {
		num.Mul(out, priceX192)
		den.Mul(net, q192)
	}
	if num.Cmp(den) >= 0 {
		return 0
	}

	impact := new(big.Int).Sub(den, num)
	impact.Mul(impact, big.NewInt(10000))
	impact.Quo(impact, den)
	return uint16(impact.Uint64())
}

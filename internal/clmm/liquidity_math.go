package clmm

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/quote-engine/internal/domain"
)

// AddDelta applies a signed liquidity delta to x. The result must stay within uint128.
func AddDelta(x *uint256.Int, delta *big.Int) (*uint256.Int, error) {
	mag, overflow := uint256.FromBig(new(big.Int).Abs(delta))
	if overflow {
		return nil, fmt.Errorf("%w: delta %s", domain.ErrLiquidityUnderflow, delta)
	}
	if delta.Sign() < 0 {
		if x.Lt(mag) {
			return nil, fmt.Errorf("%w: %s - %s", domain.ErrLiquidityUnderflow, x.Dec(), mag.Dec())
		}
		return new(uint256.Int).Sub(x, mag), nil
	}
	z := new(uint256.Int).Add(x, mag)
	if z.Gt(MaxUint128) || z.Lt(x) {
		return nil, fmt.Errorf("%w: %s + %s", domain.ErrLiquidityUnderflow, x.Dec(), mag.Dec())
	}
	return z, nil
}

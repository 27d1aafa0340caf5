package clmm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hxuan190/quote-engine/internal/domain"
)

// MulDiv computes floor(a*b/d) with a 512-bit intermediate. A zero denominator
// or a result above 2^256-1 is an overflow.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: mulDiv by zero", domain.ErrArithmeticOverflow)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, fmt.Errorf("%w: mulDiv result exceeds 256 bits", domain.ErrArithmeticOverflow)
	}
	return z, nil
}

// MulDivRoundingUp computes ceil(a*b/d).
func MulDivRoundingUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	rem := GetU256()
	defer PutU256(rem)
	if !rem.MulMod(a, b, d).IsZero() {
		if z.Eq(MaxUint256) {
			return nil, fmt.Errorf("%w: mulDiv rounding", domain.ErrArithmeticOverflow)
		}
		z.AddUint64(z, 1)
	}
	return z, nil
}

// DivRoundingUp computes ceil(x/y). y must be non-zero.
func DivRoundingUp(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", domain.ErrArithmeticOverflow)
	}
	q, r := new(uint256.Int).DivMod(x, y, new(uint256.Int))
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

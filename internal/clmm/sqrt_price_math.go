package clmm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hxuan190/quote-engine/internal/domain"
)

func toUint160(x *uint256.Int) (*uint256.Int, error) {
	if x.Gt(MaxUint160) {
		return nil, fmt.Errorf("%w: sqrt price exceeds 160 bits", domain.ErrArithmeticOverflow)
	}
	return x, nil
}

// GetNextSqrtPriceFromAmount0RoundingUp moves the price by a token0 amount,
// rounding up so the price never moves further than the amount allows.
func GetNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtPX96), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	product, mulOverflow := new(uint256.Int).MulOverflow(amount, sqrtPX96)

	if add {
		if !mulOverflow {
			denominator, addOverflow := new(uint256.Int).AddOverflow(numerator1, product)
			if !addOverflow {
				return MulDivRoundingUp(numerator1, sqrtPX96, denominator)
			}
		}
		// numerator1 / (numerator1/sqrtP + amount)
		alt := new(uint256.Int).Div(numerator1, sqrtPX96)
		if _, overflow := alt.AddOverflow(alt, amount); overflow {
			return nil, fmt.Errorf("%w: amount0 price step", domain.ErrArithmeticOverflow)
		}
		return DivRoundingUp(numerator1, alt)
	}

	if mulOverflow || !numerator1.Gt(product) {
		return nil, fmt.Errorf("%w: amount0 exceeds reserves", domain.ErrArithmeticOverflow)
	}
	denominator := new(uint256.Int).Sub(numerator1, product)
	next, err := MulDivRoundingUp(numerator1, sqrtPX96, denominator)
	if err != nil {
		return nil, err
	}
	return toUint160(next)
}

// GetNextSqrtPriceFromAmount1RoundingDown moves the price by a token1 amount,
// rounding down.
func GetNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	var quotient *uint256.Int
	var err error

	if add {
		if !amount.Gt(MaxUint160) {
			quotient = new(uint256.Int).Lsh(amount, 96)
			quotient.Div(quotient, liquidity)
		} else if quotient, err = MulDiv(amount, Q96, liquidity); err != nil {
			return nil, err
		}
		next, overflow := new(uint256.Int).AddOverflow(sqrtPX96, quotient)
		if overflow {
			return nil, fmt.Errorf("%w: amount1 price step", domain.ErrArithmeticOverflow)
		}
		return toUint160(next)
	}

	if !amount.Gt(MaxUint160) {
		if quotient, err = DivRoundingUp(new(uint256.Int).Lsh(amount, 96), liquidity); err != nil {
			return nil, err
		}
	} else if quotient, err = MulDivRoundingUp(amount, Q96, liquidity); err != nil {
		return nil, err
	}
	if !sqrtPX96.Gt(quotient) {
		return nil, fmt.Errorf("%w: amount1 exceeds reserves", domain.ErrArithmeticOverflow)
	}
	return new(uint256.Int).Sub(sqrtPX96, quotient), nil
}

// GetNextSqrtPriceFromInput returns the price after adding amountIn of the input token.
func GetNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() || liquidity.IsZero() {
		return nil, fmt.Errorf("%w: zero price or liquidity", domain.ErrArithmeticOverflow)
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return GetNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput returns the price after removing amountOut of the output token.
func GetNextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() || liquidity.IsZero() {
		return nil, fmt.Errorf("%w: zero price or liquidity", domain.ErrArithmeticOverflow)
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return GetNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

// GetAmount0Delta is the token0 amount between two prices for a liquidity.
func GetAmount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return nil, fmt.Errorf("%w: zero sqrt price", domain.ErrArithmeticOverflow)
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		v, err := MulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(v, sqrtA)
	}
	v, err := MulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return v.Div(v, sqrtA), nil
}

// GetAmount1Delta is the token1 amount between two prices for a liquidity.
func GetAmount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

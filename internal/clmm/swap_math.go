package clmm

import (
	"github.com/holiman/uint256"
)

// SwapStep is the outcome of one ComputeSwapStep call.
type SwapStep struct {
	SqrtPriceNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeSwapStep swaps within a single price range [current, target] at
// constant liquidity. amountRemaining is a magnitude; exactIn selects whether
// it caps the input (fee included) or the output.
func ComputeSwapStep(sqrtCurrent, sqrtTarget, liquidity, amountRemaining *uint256.Int, exactIn bool, feePips uint32) (*SwapStep, error) {
	zeroForOne := !sqrtCurrent.Lt(sqrtTarget)
	fee := uint256.NewInt(uint64(feePips))
	feeComplement := new(uint256.Int).Sub(u256FeePips, fee)

	var (
		next, amountIn, amountOut *uint256.Int
		err                       error
	)

	if exactIn {
		var lessFee *uint256.Int
		if lessFee, err = MulDiv(amountRemaining, feeComplement, u256FeePips); err != nil {
			return nil, err
		}
		if zeroForOne {
			amountIn, err = GetAmount0Delta(sqrtTarget, sqrtCurrent, liquidity, true)
		} else {
			amountIn, err = GetAmount1Delta(sqrtCurrent, sqrtTarget, liquidity, true)
		}
		if err != nil {
			return nil, err
		}
		if !lessFee.Lt(amountIn) {
			next = new(uint256.Int).Set(sqrtTarget)
		} else if next, err = GetNextSqrtPriceFromInput(sqrtCurrent, liquidity, lessFee, zeroForOne); err != nil {
			return nil, err
		}
	} else {
		if zeroForOne {
			amountOut, err = GetAmount1Delta(sqrtTarget, sqrtCurrent, liquidity, false)
		} else {
			amountOut, err = GetAmount0Delta(sqrtCurrent, sqrtTarget, liquidity, false)
		}
		if err != nil {
			return nil, err
		}
		if !amountRemaining.Lt(amountOut) {
			next = new(uint256.Int).Set(sqrtTarget)
		} else if next, err = GetNextSqrtPriceFromOutput(sqrtCurrent, liquidity, amountRemaining, zeroForOne); err != nil {
			return nil, err
		}
	}

	reachedTarget := next.Eq(sqrtTarget)

	if zeroForOne {
		if !(reachedTarget && exactIn) {
			if amountIn, err = GetAmount0Delta(next, sqrtCurrent, liquidity, true); err != nil {
				return nil, err
			}
		}
		if !(reachedTarget && !exactIn) {
			if amountOut, err = GetAmount1Delta(next, sqrtCurrent, liquidity, false); err != nil {
				return nil, err
			}
		}
	} else {
		if !(reachedTarget && exactIn) {
			if amountIn, err = GetAmount1Delta(sqrtCurrent, next, liquidity, true); err != nil {
				return nil, err
			}
		}
		if !(reachedTarget && !exactIn) {
			if amountOut, err = GetAmount0Delta(sqrtCurrent, next, liquidity, false); err != nil {
				return nil, err
			}
		}
	}

	// the output may not exceed what was asked for
	if !exactIn && amountOut.Gt(amountRemaining) {
		amountOut = new(uint256.Int).Set(amountRemaining)
	}

	var feeAmount *uint256.Int
	if exactIn && !reachedTarget {
		// remainder of the input goes to the fee
		feeAmount = new(uint256.Int).Sub(amountRemaining, amountIn)
	} else if feeAmount, err = MulDivRoundingUp(amountIn, fee, feeComplement); err != nil {
		return nil, err
	}

	return &SwapStep{
		SqrtPriceNextX96: next,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		FeeAmount:        feeAmount,
	}, nil
}

package domain

import (
	"errors"
	"fmt"
)

// Quote error kinds. Every error returned by the simulator, the quoter and the
// codec wraps exactly one of these so callers can branch with errors.Is.
var (
	ErrMalformedRoute     = errors.New("malformed route")
	ErrUnresolvedPool     = errors.New("unresolved pool")
	ErrNoProgress         = errors.New("no progress: liquidity exhausted")
	ErrPartialFill        = errors.New("partial fill: price limit reached before amount filled")
	ErrStateShapeMismatch = errors.New("carried state length does not match hop count")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidPriceLimit = errors.New("invalid sqrt price limit")
	ErrInvalidCurveState = errors.New("invalid curve state")
	ErrStepLimitExceeded = errors.New("curve walk exceeded step limit")
)

// ErrLiquidityUnderflow is an arithmetic fault raised when crossing a tick would
// drive in-range liquidity below zero or above uint128.
var ErrLiquidityUnderflow = fmt.Errorf("%w: liquidity out of range", ErrArithmeticOverflow)

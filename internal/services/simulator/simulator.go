// Package simulator walks a concentrated-liquidity curve for one swap.
package simulator

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/quote-engine/internal/clmm"
	"github.com/hxuan190/quote-engine/internal/domain"
)

const DefaultMaxSteps = 10_000

type TradeKind uint8

const (
	ExactInput TradeKind = iota
	ExactOutput
)

func (k TradeKind) String() string {
	if k == ExactOutput {
		return "ExactOut"
	}
	return "ExactIn"
}

// TradeSpec is the amount a trader fixes: the input they supply or the output
// they demand.
type TradeSpec struct {
	Kind   TradeKind
	Amount *uint256.Int
}

func ExactIn(amount *uint256.Int) TradeSpec {
	return TradeSpec{Kind: ExactInput, Amount: amount}
}

func ExactOut(amount *uint256.Int) TradeSpec {
	return TradeSpec{Kind: ExactOutput, Amount: amount}
}

// Signed returns the int256 view: positive for exact input, negative for exact output.
func (t TradeSpec) Signed() *big.Int {
	v := t.Amount.ToBig()
	if t.Kind == ExactOutput {
		v.Neg(v)
	}
	return v
}

// TradeSpecFromSigned is the inverse of Signed.
func TradeSpecFromSigned(v *big.Int) (TradeSpec, error) {
	mag, overflow := uint256.FromBig(new(big.Int).Abs(v))
	if overflow {
		return TradeSpec{}, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, v)
	}
	if v.Sign() < 0 {
		return ExactOut(mag), nil
	}
	return ExactIn(mag), nil
}

func (t TradeSpec) validate() error {
	if t.Amount == nil || t.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	if !t.Amount.Lt(clmm.MaxSignedAmount) {
		return fmt.Errorf("%w: amount %s does not fit int256", domain.ErrInvalidAmount, t.Amount.Dec())
	}
	return nil
}

type Request struct {
	State      *domain.CurveState
	ZeroForOne bool
	Trade      TradeSpec
	// PriceLimit bounds the walk; nil means the curve end in the direction of travel.
	PriceLimit       *uint256.Int
	AllowPartialFill bool
}

type Result struct {
	// Delta0 and Delta1 are the pool's balance changes: positive is paid in by
	// the trader, negative is paid out.
	Delta0 *big.Int
	Delta1 *big.Int

	AmountIn  *uint256.Int // fee included
	AmountOut *uint256.Int
	FeeAmount *uint256.Int

	Status        domain.FillStatus
	PartialReason domain.PartialReason
	TicksCrossed  uint32
	Steps         int

	// SqrtPriceX96Before is the curve price the walk started from.
	SqrtPriceX96Before *uint256.Int
	State              *domain.CurveState
}

type Simulator struct {
	maxSteps int
}

func New(maxSteps int) *Simulator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Simulator{maxSteps: maxSteps}
}

func (s *Simulator) MaxSteps() int {
	return s.maxSteps
}

// DefaultPriceLimit is the limit used when a request has none.
func DefaultPriceLimit(zeroForOne bool) *uint256.Int {
	if zeroForOne {
		return new(uint256.Int).AddUint64(clmm.MinSqrtRatio, 1)
	}
	return new(uint256.Int).SubUint64(clmm.MaxSqrtRatio, 1)
}

func validatePriceLimit(price, limit *uint256.Int, zeroForOne bool) error {
	if zeroForOne {
		if !limit.Gt(clmm.MinSqrtRatio) || limit.Gt(price) {
			return fmt.Errorf("%w: %s must be in (%s, %s]", domain.ErrInvalidPriceLimit, limit.Dec(), clmm.MinSqrtRatio.Dec(), price.Dec())
		}
		return nil
	}
	if limit.Lt(price) || !limit.Lt(clmm.MaxSqrtRatio) {
		return fmt.Errorf("%w: %s must be in [%s, %s)", domain.ErrInvalidPriceLimit, limit.Dec(), price.Dec(), clmm.MaxSqrtRatio.Dec())
	}
	return nil
}

// Simulate walks the curve of req.State until the trade amount is used up or
// the price limit is reached. req.State is not modified.
func (s *Simulator) Simulate(req Request) (*Result, error) {
	if err := req.State.Validate(); err != nil {
		return nil, err
	}
	price := req.State.SqrtPriceX96
	if price.Lt(clmm.MinSqrtRatio) || !price.Lt(clmm.MaxSqrtRatio) {
		return nil, fmt.Errorf("%w: sqrt price %s out of range", domain.ErrInvalidCurveState, price.Dec())
	}
	if err := checkTick(req.State); err != nil {
		return nil, err
	}
	if err := req.Trade.validate(); err != nil {
		return nil, err
	}

	zeroForOne := req.ZeroForOne
	explicitLimit := req.PriceLimit != nil
	limit := req.PriceLimit
	if !explicitLimit {
		limit = DefaultPriceLimit(zeroForOne)
	}
	if err := validatePriceLimit(price, limit, zeroForOne); err != nil {
		return nil, err
	}

	exactIn := req.Trade.Kind == ExactInput
	state := req.State.Clone()
	remaining := new(uint256.Int).Set(req.Trade.Amount)
	calculated := new(uint256.Int)
	feeTotal := new(uint256.Int)

	var (
		steps        int
		ticksCrossed uint32
		exhausted    bool
	)

	for !remaining.IsZero() && !state.SqrtPriceX96.Eq(limit) {
		if state.Liquidity.IsZero() && !clmm.HasInitializedTickAhead(state.Ticks, state.Tick, zeroForOne) {
			if err := jumpToLimit(state, limit, zeroForOne); err != nil {
				return nil, err
			}
			exhausted = true
			break
		}

		steps++
		if steps > s.maxSteps {
			return nil, fmt.Errorf("%w: %d steps", domain.ErrStepLimitExceeded, s.maxSteps)
		}

		tickNext, initialized := clmm.NextInitializedTickWithinOneWord(state.Ticks, state.Tick, state.TickSpacing, zeroForOne)
		sqrtNext, err := clmm.GetSqrtRatioAtTick(tickNext)
		if err != nil {
			return nil, err
		}

		target := sqrtNext
		if (zeroForOne && sqrtNext.Lt(limit)) || (!zeroForOne && sqrtNext.Gt(limit)) {
			target = limit
		}

		step, err := clmm.ComputeSwapStep(state.SqrtPriceX96, target, state.Liquidity, remaining, exactIn, state.Fee)
		if err != nil {
			return nil, err
		}

		if exactIn {
			spent, overflow := new(uint256.Int).AddOverflow(step.AmountIn, step.FeeAmount)
			if overflow || spent.Gt(remaining) {
				return nil, fmt.Errorf("%w: step input exceeds remaining", domain.ErrArithmeticOverflow)
			}
			remaining.Sub(remaining, spent)
			if _, overflow = calculated.AddOverflow(calculated, step.AmountOut); overflow {
				return nil, fmt.Errorf("%w: accumulated output", domain.ErrArithmeticOverflow)
			}
		} else {
			remaining.Sub(remaining, step.AmountOut)
			if _, overflow := calculated.AddOverflow(calculated, step.AmountIn); overflow {
				return nil, fmt.Errorf("%w: accumulated input", domain.ErrArithmeticOverflow)
			}
			if _, overflow := calculated.AddOverflow(calculated, step.FeeAmount); overflow {
				return nil, fmt.Errorf("%w: accumulated input", domain.ErrArithmeticOverflow)
			}
		}
		feeTotal.Add(feeTotal, step.FeeAmount)

		state.SqrtPriceX96 = step.SqrtPriceNextX96
		if step.SqrtPriceNextX96.Eq(sqrtNext) {
			if initialized {
				tick, _ := clmm.FindTick(state.Ticks, tickNext)
				net := tick.LiquidityNet
				if zeroForOne {
					net = new(big.Int).Neg(net)
				}
				liquidity, err := clmm.AddDelta(state.Liquidity, net)
				if err != nil {
					return nil, fmt.Errorf("crossing tick %d: %w", tickNext, err)
				}
				state.Liquidity = liquidity
				ticksCrossed++
			}
			if zeroForOne {
				state.Tick = tickNext - 1
			} else {
				state.Tick = tickNext
			}
		} else if !step.SqrtPriceNextX96.Eq(price) {
			if state.Tick, err = clmm.GetTickAtSqrtRatio(step.SqrtPriceNextX96); err != nil {
				return nil, err
			}
		}
		price = state.SqrtPriceX96
	}

	consumed := new(uint256.Int).Sub(req.Trade.Amount, remaining)
	res := &Result{
		FeeAmount:          feeTotal,
		TicksCrossed:       ticksCrossed,
		Steps:              steps,
		SqrtPriceX96Before: new(uint256.Int).Set(req.State.SqrtPriceX96),
		State:              state,
	}
	if exactIn {
		res.AmountIn, res.AmountOut = consumed, calculated
	} else {
		res.AmountIn, res.AmountOut = calculated, consumed
	}
	if zeroForOne {
		res.Delta0 = res.AmountIn.ToBig()
		res.Delta1 = new(big.Int).Neg(res.AmountOut.ToBig())
	} else {
		res.Delta0 = new(big.Int).Neg(res.AmountOut.ToBig())
		res.Delta1 = res.AmountIn.ToBig()
	}

	if remaining.IsZero() {
		res.Status = domain.StatusFilled
		return res, nil
	}

	res.Status = domain.StatusPartialFill
	res.PartialReason = domain.PartialPriceLimit
	if exhausted || !explicitLimit {
		res.PartialReason = domain.PartialLiquidityExhausted
	}
	if res.PartialReason == domain.PartialLiquidityExhausted && consumed.IsZero() {
		return nil, fmt.Errorf("%w: nothing filled", domain.ErrNoProgress)
	}
	if !req.AllowPartialFill {
		return nil, fmt.Errorf("%w: filled %s of %s", domain.ErrPartialFill, consumed.Dec(), req.Trade.Amount.Dec())
	}
	return res, nil
}

// checkTick verifies ratio(tick) <= price <= ratio(tick+1). The upper bound is
// inclusive because a downward crossing leaves the price on the crossed tick.
func checkTick(state *domain.CurveState) error {
	if state.Tick < clmm.MinTick || state.Tick >= clmm.MaxTick {
		return fmt.Errorf("%w: tick %d out of range", domain.ErrInvalidCurveState, state.Tick)
	}
	lo, err := clmm.GetSqrtRatioAtTick(state.Tick)
	if err != nil {
		return err
	}
	hi, err := clmm.GetSqrtRatioAtTick(state.Tick + 1)
	if err != nil {
		return err
	}
	if state.SqrtPriceX96.Lt(lo) || state.SqrtPriceX96.Gt(hi) {
		return fmt.Errorf("%w: tick %d does not match sqrt price %s", domain.ErrInvalidCurveState, state.Tick, state.SqrtPriceX96.Dec())
	}
	return nil
}

// jumpToLimit moves an empty curve straight to the price limit. The resulting
// tick matches a step-by-step walk: landing exactly on a word start while
// moving down leaves the tick just below it.
func jumpToLimit(state *domain.CurveState, limit *uint256.Int, zeroForOne bool) error {
	tick, err := clmm.GetTickAtSqrtRatio(limit)
	if err != nil {
		return err
	}
	if zeroForOne && clmm.IsWordStart(tick, state.TickSpacing) {
		if ratio, _ := clmm.GetSqrtRatioAtTick(tick); ratio.Eq(limit) {
			tick--
		}
	}
	state.SqrtPriceX96 = new(uint256.Int).Set(limit)
	state.Tick = tick
	return nil
}

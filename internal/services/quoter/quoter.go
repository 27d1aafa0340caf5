package quoter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/quote-engine/internal/domain"
	"github.com/hxuan190/quote-engine/internal/metrics"
	"github.com/hxuan190/quote-engine/internal/path"
	"github.com/hxuan190/quote-engine/internal/services/simulator"
)

// PoolLocator derives a pool address from a token pair and fee tier.
type PoolLocator interface {
	PoolAddress(tokenA, tokenB solana.PublicKey, fee uint32) (solana.PublicKey, error)
}

// CurveStateSource returns an independent copy of a pool's current curve state.
type CurveStateSource interface {
	CurveState(ctx context.Context, pool solana.PublicKey) (*domain.CurveState, error)
}

type Quoter struct {
	locator PoolLocator
	source  CurveStateSource
	sim     *simulator.Simulator

	// propagatePartial lets a truncated hop feed its smaller amount into the
	// rest of the route instead of failing the quote.
	propagatePartial bool
}

func New(locator PoolLocator, source CurveStateSource, sim *simulator.Simulator, propagatePartial bool) *Quoter {
	return &Quoter{
		locator:          locator,
		source:           source,
		sim:              sim,
		propagatePartial: propagatePartial,
	}
}

// SingleParams describes a one-pool quote. A nil SqrtPriceLimitX96 quotes over
// the full curve.
type SingleParams struct {
	TokenIn           solana.PublicKey
	TokenOut          solana.PublicKey
	Fee               uint32
	Amount            *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
}

// QuoteExactInputSingle returns the output of selling Amount of TokenIn in one pool.
func (q *Quoter) QuoteExactInputSingle(ctx context.Context, p SingleParams) (*domain.SingleQuote, error) {
	return q.quoteSingle(ctx, p, simulator.ExactIn(p.Amount))
}

// QuoteExactOutputSingle returns the input needed to buy Amount of TokenOut in one pool.
func (q *Quoter) QuoteExactOutputSingle(ctx context.Context, p SingleParams) (*domain.SingleQuote, error) {
	return q.quoteSingle(ctx, p, simulator.ExactOut(p.Amount))
}

func (q *Quoter) quoteSingle(ctx context.Context, p SingleParams, trade simulator.TradeSpec) (quote *domain.SingleQuote, err error) {
	start := time.Now()
	defer func() { observe(trade.Kind, start, 1, err, quote != nil && quote.Status == domain.StatusPartialFill) }()

	hop := domain.Hop{TokenIn: p.TokenIn, TokenOut: p.TokenOut, Fee: p.Fee}
	if hop.TokenIn.Equals(hop.TokenOut) || hop.Fee > path.MaxFee {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedRoute, hop)
	}

	// an explicit limit asks for a partial fill by definition
	allowPartial := p.SqrtPriceLimitX96 != nil || q.propagatePartial
	pool, res, err := q.quoteHop(ctx, 0, hop, nil, trade, p.SqrtPriceLimitX96, allowPartial)
	if err != nil {
		return nil, err
	}

	return &domain.SingleQuote{
		Pool:              pool,
		AmountIn:          res.AmountIn,
		AmountOut:         res.AmountOut,
		FeeAmount:         res.FeeAmount,
		SqrtPriceX96After: res.State.SqrtPriceX96,
		PriceImpactBps:    CalculatePriceImpact(res.AmountIn, res.AmountOut, res.FeeAmount, res.SqrtPriceX96Before, hop.ZeroForOne()),
		TicksCrossed:      res.TicksCrossed,
		ZeroForOne:        hop.ZeroForOne(),
		Status:            res.Status,
		PartialReason:     res.PartialReason,
		State:             res.State,
	}, nil
}

// QuoteExactInput returns the final output of a route for amountIn. A route
// that cannot take the whole amount fails with ErrPartialFill under either
// policy; use the stateful variant to inspect a propagated partial fill.
func (q *Quoter) QuoteExactInput(ctx context.Context, encoded []byte, amountIn *uint256.Int) (*uint256.Int, error) {
	quote, err := q.quoteExactInput(ctx, encoded, amountIn, nil, false)
	if err != nil {
		return nil, err
	}
	if quote.Partial {
		return nil, fmt.Errorf("%w: route took %s of %s", domain.ErrPartialFill, quote.AmountIn().Dec(), amountIn.Dec())
	}
	return quote.AmountOut(), nil
}

// QuoteExactInputStateful quotes a route forward, starting each hop from
// carried[k] when carried is non-empty, and returns every intermediate amount
// plus each hop's post-walk state.
func (q *Quoter) QuoteExactInputStateful(ctx context.Context, encoded []byte, amountIn *uint256.Int, carried []*domain.CurveState) (*domain.MultiHopQuote, error) {
	return q.quoteExactInput(ctx, encoded, amountIn, carried, true)
}

// QuoteExactOutput returns the input a route needs to produce amountOut.
func (q *Quoter) QuoteExactOutput(ctx context.Context, encoded []byte, amountOut *uint256.Int) (*uint256.Int, error) {
	quote, err := q.quoteExactOutput(ctx, encoded, amountOut, nil, false)
	if err != nil {
		return nil, err
	}
	if quote.Partial {
		return nil, fmt.Errorf("%w: route delivered %s of %s", domain.ErrPartialFill, quote.AmountOut().Dec(), amountOut.Dec())
	}
	return quote.AmountIn(), nil
}

// QuoteExactOutputStateful is the exact output counterpart of QuoteExactInputStateful.
// Hops are walked last to first and Amounts is filled from the tail. When a hop
// is truncated under the propagate policy, the hops after it are re-quoted as
// exact input from what it delivers, so Amounts always describes one
// consistent trade.
func (q *Quoter) QuoteExactOutputStateful(ctx context.Context, encoded []byte, amountOut *uint256.Int, carried []*domain.CurveState) (*domain.MultiHopQuote, error) {
	return q.quoteExactOutput(ctx, encoded, amountOut, carried, true)
}

// Snapshot returns fresh starting states for every hop of a route, suitable
// as the carried argument of the stateful quotes.
func (q *Quoter) Snapshot(ctx context.Context, encoded []byte) ([]*domain.CurveState, error) {
	hops, err := path.Decode(encoded)
	if err != nil {
		return nil, err
	}
	states := make([]*domain.CurveState, len(hops))
	for k, hop := range hops {
		_, state, err := q.resolve(ctx, hop, nil)
		if err != nil {
			return nil, fmt.Errorf("hop %d (%s): %w", k, hop, err)
		}
		states[k] = state
	}
	return states, nil
}

func (q *Quoter) quoteExactInput(ctx context.Context, encoded []byte, amountIn *uint256.Int, carried []*domain.CurveState, keepStates bool) (quote *domain.MultiHopQuote, err error) {
	start := time.Now()
	var hops []domain.Hop
	defer func() { observe(simulator.ExactInput, start, len(hops), err, quote != nil && quote.Partial) }()

	if hops, err = decodeRoute(encoded, carried); err != nil {
		return nil, err
	}

	quote = newMultiHopQuote(hops, true, keepStates)
	quote.Amounts[0] = amountIn
	if err = q.walkForward(ctx, quote, hops, carried, 0, keepStates); err != nil {
		return nil, err
	}
	return quote, nil
}

// walkForward quotes hops[from:] as exact input of quote.Amounts[from]. A hop
// that takes less than offered lowers Amounts[k] to what it consumed.
func (q *Quoter) walkForward(ctx context.Context, quote *domain.MultiHopQuote, hops []domain.Hop, carried []*domain.CurveState, from int, keepStates bool) error {
	for k := from; k < len(hops); k++ {
		hop := hops[k]
		pool, res, err := q.quoteHop(ctx, k, hop, carriedAt(carried, k), simulator.ExactIn(quote.Amounts[k]), nil, q.propagatePartial)
		if err != nil {
			return err
		}
		quote.Amounts[k] = res.AmountIn
		quote.Amounts[k+1] = res.AmountOut
		q.record(quote, k, hop, pool, res, keepStates)
	}
	return nil
}

func (q *Quoter) quoteExactOutput(ctx context.Context, encoded []byte, amountOut *uint256.Int, carried []*domain.CurveState, keepStates bool) (quote *domain.MultiHopQuote, err error) {
	start := time.Now()
	var hops []domain.Hop
	defer func() { observe(simulator.ExactOutput, start, len(hops), err, quote != nil && quote.Partial) }()

	if hops, err = decodeRoute(encoded, carried); err != nil {
		return nil, err
	}

	quote = newMultiHopQuote(hops, false, keepStates)
	quote.Amounts[len(hops)] = amountOut
	for k := len(hops) - 1; k >= 0; k-- {
		hop := hops[k]
		pool, res, err := q.quoteHop(ctx, k, hop, carriedAt(carried, k), simulator.ExactOut(quote.Amounts[k+1]), nil, q.propagatePartial)
		if err != nil {
			return nil, err
		}
		quote.Amounts[k] = res.AmountIn
		q.record(quote, k, hop, pool, res, keepStates)

		if res.Status == domain.StatusPartialFill {
			// the later hops were priced for more than this hop delivers
			quote.Amounts[k+1] = res.AmountOut
			if err = q.walkForward(ctx, quote, hops, carried, k+1, keepStates); err != nil {
				return nil, err
			}
		}
	}
	return quote, nil
}

// quoteHop resolves one hop's pool and walks its curve. Both route directions
// go through here.
func (q *Quoter) quoteHop(
	ctx context.Context,
	index int,
	hop domain.Hop,
	carried *domain.CurveState,
	trade simulator.TradeSpec,
	limit *uint256.Int,
	allowPartial bool,
) (solana.PublicKey, *simulator.Result, error) {
	if err := ctx.Err(); err != nil {
		return solana.PublicKey{}, nil, err
	}
	pool, state, err := q.resolve(ctx, hop, carried)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("hop %d (%s): %w", index, hop, err)
	}

	res, err := q.sim.Simulate(simulator.Request{
		State:            state,
		ZeroForOne:       hop.ZeroForOne(),
		Trade:            trade,
		PriceLimit:       limit,
		AllowPartialFill: allowPartial,
	})
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("hop %d (%s): %w", index, hop, err)
	}

	metrics.SimulationSteps.Observe(float64(res.Steps))
	metrics.TicksCrossed.Observe(float64(res.TicksCrossed))
	if res.Status == domain.StatusPartialFill {
		metrics.PartialFills.WithLabelValues(res.PartialReason.String()).Inc()
		log.Debug().
			Int("hop", index).
			Str("pool", pool.String()).
			Str("reason", res.PartialReason.String()).
			Str("requested", trade.Amount.Dec()).
			Msg("[quoter] partial fill")
	}
	return pool, res, nil
}

func (q *Quoter) resolve(ctx context.Context, hop domain.Hop, carried *domain.CurveState) (solana.PublicKey, *domain.CurveState, error) {
	pool, err := q.locator.PoolAddress(hop.TokenIn, hop.TokenOut, hop.Fee)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: %v", domain.ErrUnresolvedPool, err)
	}
	if carried != nil {
		if carried.Fee != hop.Fee {
			return solana.PublicKey{}, nil, fmt.Errorf("%w: carried fee %d for fee tier %d", domain.ErrInvalidCurveState, carried.Fee, hop.Fee)
		}
		return pool, carried, nil
	}
	state, err := q.source.CurveState(ctx, pool)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return pool, state, nil
}

func (q *Quoter) record(quote *domain.MultiHopQuote, k int, hop domain.Hop, pool solana.PublicKey, res *simulator.Result, keepStates bool) {
	quote.Hops[k] = domain.HopQuote{
		Hop:               hop,
		Pool:              pool,
		AmountIn:          res.AmountIn,
		AmountOut:         res.AmountOut,
		FeeAmount:         res.FeeAmount,
		SqrtPriceX96After: res.State.SqrtPriceX96,
		PriceImpactBps:    CalculatePriceImpact(res.AmountIn, res.AmountOut, res.FeeAmount, res.SqrtPriceX96Before, hop.ZeroForOne()),
		TicksCrossed:      res.TicksCrossed,
		Status:            res.Status,
	}
	if keepStates {
		quote.States[k] = res.State
	}
	if res.Status == domain.StatusPartialFill {
		quote.Partial = true
	}
}

// decodeRoute decodes the path and checks the carried array shape before any
// pool is touched.
func decodeRoute(encoded []byte, carried []*domain.CurveState) ([]domain.Hop, error) {
	hops, err := path.Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(carried) != 0 && len(carried) != len(hops) {
		return nil, fmt.Errorf("%w: %d states for %d hops", domain.ErrStateShapeMismatch, len(carried), len(hops))
	}
	for k, state := range carried {
		if state == nil {
			return nil, fmt.Errorf("%w: carried state %d is empty", domain.ErrStateShapeMismatch, k)
		}
	}
	return hops, nil
}

func carriedAt(carried []*domain.CurveState, k int) *domain.CurveState {
	if len(carried) == 0 {
		return nil
	}
	return carried[k]
}

func newMultiHopQuote(hops []domain.Hop, exactIn, keepStates bool) *domain.MultiHopQuote {
	quote := &domain.MultiHopQuote{
		ExactIn: exactIn,
		Hops:    make([]domain.HopQuote, len(hops)),
		Amounts: make([]*uint256.Int, len(hops)+1),
	}
	if keepStates {
		quote.States = make([]*domain.CurveState, len(hops))
	}
	return quote
}

func observe(kind simulator.TradeKind, start time.Time, hops int, err error, partial bool) {
	status := "success"
	switch {
	case err != nil:
		status = ErrorKind(err)
	case partial:
		status = "partial"
	}
	metrics.QuoteRequests.WithLabelValues(kind.String(), status).Inc()
	metrics.QuoteDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	if hops > 0 {
		metrics.QuoteHops.Observe(float64(hops))
	}
}

// ErrorKind names the error kind err belongs to.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrMalformedRoute):
		return "malformed_route"
	case errors.Is(err, domain.ErrUnresolvedPool):
		return "unresolved_pool"
	case errors.Is(err, domain.ErrNoProgress):
		return "no_progress"
	case errors.Is(err, domain.ErrPartialFill):
		return "partial_fill"
	case errors.Is(err, domain.ErrStateShapeMismatch):
		return "state_shape_mismatch"
	case errors.Is(err, domain.ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrInvalidPriceLimit):
		return "invalid_price_limit"
	case errors.Is(err, domain.ErrInvalidCurveState):
		return "invalid_curve_state"
	case errors.Is(err, domain.ErrStepLimitExceeded):
		return "step_limit_exceeded"
	default:
		return "internal"
	}
}

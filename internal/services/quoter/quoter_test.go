package quoter

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/quote-engine/internal/clmm"
	"github.com/hxuan190/quote-engine/internal/domain"
	"github.com/hxuan190/quote-engine/internal/path"
	"github.com/hxuan190/quote-engine/internal/services/simulator"
)

var (
	tokenA = testToken(1)
	tokenB = testToken(2)
	tokenC = testToken(3)
	tokenD = testToken(4)

	e18 = big.NewInt(1_000_000_000_000_000_000)
)

func testToken(b byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = b
	return pk
}

// memLocator addresses a pool by its sorted token prefixes and fee.
type memLocator struct{}

func (memLocator) PoolAddress(tokenA, tokenB solana.PublicKey, fee uint32) (solana.PublicKey, error) {
	if tokenA.Equals(tokenB) {
		return solana.PublicKey{}, fmt.Errorf("identical tokens")
	}
	t0, t1 := domain.SortTokens(tokenA, tokenB)
	var addr solana.PublicKey
	addr[0], addr[1] = t0[0], t1[0]
	addr[2], addr[3], addr[4] = byte(fee>>16), byte(fee>>8), byte(fee)
	addr[31] = 0xff
	return addr, nil
}

type memSource struct {
	states map[solana.PublicKey]*domain.CurveState
	calls  int
}

func (s *memSource) CurveState(_ context.Context, pool solana.PublicKey) (*domain.CurveState, error) {
	s.calls++
	state, ok := s.states[pool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnresolvedPool, pool)
	}
	return state.Clone(), nil
}

// testCurve sits at price 1 with 1e18 over [-600, 600] and 5e17 over [-6000, 6000].
func testCurve(fee uint32) *domain.CurveState {
	half := new(big.Int).Div(e18, big.NewInt(2))
	return &domain.CurveState{
		SqrtPriceX96: new(uint256.Int).Set(clmm.Q96),
		Liquidity:    uint256.MustFromDecimal("1500000000000000000"),
		Tick:         0,
		TickSpacing:  60,
		Fee:          fee,
		Ticks: []domain.Tick{
			{Index: -6000, LiquidityNet: new(big.Int).Set(half)},
			{Index: -600, LiquidityNet: new(big.Int).Set(e18)},
			{Index: 600, LiquidityNet: new(big.Int).Neg(e18)},
			{Index: 6000, LiquidityNet: new(big.Int).Neg(half)},
		},
	}
}

func newTestQuoter(t *testing.T, propagate bool) (*Quoter, *memSource) {
	t.Helper()
	source := &memSource{states: make(map[solana.PublicKey]*domain.CurveState)}
	for _, pair := range [][2]solana.PublicKey{{tokenA, tokenB}, {tokenB, tokenC}, {tokenC, tokenD}} {
		addr, err := memLocator{}.PoolAddress(pair[0], pair[1], 3000)
		require.NoError(t, err)
		source.states[addr] = testCurve(3000)
	}
	return New(memLocator{}, source, simulator.New(0), propagate), source
}

func route(t *testing.T, tokens ...solana.PublicKey) []byte {
	t.Helper()
	fees := make([]uint32, len(tokens)-1)
	for i := range fees {
		fees[i] = 3000
	}
	encoded, err := path.EncodeTokens(tokens, fees)
	require.NoError(t, err)
	return encoded
}

func amount(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

func TestQuoteExactInput_ChainsHops(t *testing.T) {
	q, _ := newTestQuoter(t, false)
	ctx := context.Background()

	quote, err := q.QuoteExactInputStateful(ctx, route(t, tokenA, tokenB, tokenC), amount("1000000000000000"), nil)
	require.NoError(t, err)
	require.Len(t, quote.Hops, 2)
	require.Len(t, quote.Amounts, 3)
	require.Len(t, quote.States, 2)
	require.False(t, quote.Partial)

	first, err := q.QuoteExactInputSingle(ctx, SingleParams{TokenIn: tokenA, TokenOut: tokenB, Fee: 3000, Amount: amount("1000000000000000")})
	require.NoError(t, err)
	require.True(t, first.AmountOut.Eq(quote.Amounts[1]))

	second, err := q.QuoteExactInputSingle(ctx, SingleParams{TokenIn: tokenB, TokenOut: tokenC, Fee: 3000, Amount: quote.Amounts[1]})
	require.NoError(t, err)
	require.True(t, second.AmountOut.Eq(quote.Amounts[2]))

	for k, hop := range quote.Hops {
		require.True(t, hop.AmountIn.Eq(quote.Amounts[k]), "hop %d input", k)
		require.True(t, hop.AmountOut.Eq(quote.Amounts[k+1]), "hop %d output", k)
		require.True(t, hop.SqrtPriceX96After.Eq(quote.States[k].SqrtPriceX96))
	}

	out, err := q.QuoteExactInput(ctx, route(t, tokenA, tokenB, tokenC), amount("1000000000000000"))
	require.NoError(t, err)
	require.True(t, out.Eq(quote.AmountOut()))
}

func TestQuoteExactOutput_FillsFromTail(t *testing.T) {
	q, _ := newTestQuoter(t, false)
	ctx := context.Background()
	want := amount("1000000000000000")

	quote, err := q.QuoteExactOutputStateful(ctx, route(t, tokenA, tokenB, tokenC), want, nil)
	require.NoError(t, err)
	require.False(t, quote.ExactIn)
	require.True(t, quote.AmountOut().Eq(want))
	require.True(t, quote.Hops[1].AmountOut.Eq(want))
	require.True(t, quote.Hops[1].AmountIn.Eq(quote.Amounts[1]))
	require.True(t, quote.Hops[0].AmountOut.Eq(quote.Amounts[1]))
	require.True(t, quote.AmountIn().Gt(want), "fees make the input larger than the output at price 1")

	in, err := q.QuoteExactOutput(ctx, route(t, tokenA, tokenB, tokenC), want)
	require.NoError(t, err)
	require.True(t, in.Eq(quote.AmountIn()))
}

func TestQuote_DirectionSymmetry(t *testing.T) {
	q, _ := newTestQuoter(t, false)
	ctx := context.Background()

	for _, r := range [][]solana.PublicKey{
		{tokenA, tokenB},
		{tokenB, tokenA},
		{tokenA, tokenB, tokenC},
		{tokenD, tokenC, tokenB, tokenA},
	} {
		encoded := route(t, r...)
		in := amount("123456789012345")

		out, err := q.QuoteExactInput(ctx, encoded, in)
		require.NoError(t, err)

		back, err := q.QuoteExactOutput(ctx, encoded, out)
		require.NoError(t, err)

		// the cheapest input for out can only be smaller, and only by rounding
		require.False(t, back.Gt(in), "route %d hops: %s > %s", len(r)-1, back.Dec(), in.Dec())
		diff := new(uint256.Int).Sub(in, back)
		require.True(t, diff.LtUint64(uint64(4*len(r))), "route %d hops: diff %s", len(r)-1, diff.Dec())
	}
}

func TestQuoteStateful_MatchesStateless(t *testing.T) {
	q, _ := newTestQuoter(t, false)
	ctx := context.Background()
	encoded := route(t, tokenA, tokenB, tokenC, tokenD)

	snapshot, err := q.Snapshot(ctx, encoded)
	require.NoError(t, err)
	require.Len(t, snapshot, 3)

	withSnapshot, err := q.QuoteExactInputStateful(ctx, encoded, amount("5000000000000000"), snapshot)
	require.NoError(t, err)
	fresh, err := q.QuoteExactInputStateful(ctx, encoded, amount("5000000000000000"), nil)
	require.NoError(t, err)

	for k := range withSnapshot.Amounts {
		require.True(t, withSnapshot.Amounts[k].Eq(fresh.Amounts[k]), "amount %d", k)
	}
}

func TestQuoteStateful_CarriesPriceImpact(t *testing.T) {
	q, source := newTestQuoter(t, false)
	ctx := context.Background()
	encoded := route(t, tokenA, tokenB, tokenC)
	in := amount("50000000000000000")

	first, err := q.QuoteExactInputStateful(ctx, encoded, in, nil)
	require.NoError(t, err)

	before := make([]*uint256.Int, len(first.States))
	for k, s := range first.States {
		before[k] = new(uint256.Int).Set(s.SqrtPriceX96)
	}

	calls := source.calls
	second, err := q.QuoteExactInputStateful(ctx, encoded, in, first.States)
	require.NoError(t, err)
	require.Equal(t, calls, source.calls, "carried states must not hit the source")
	require.True(t, second.AmountOut().Lt(first.AmountOut()), "second trade sees the first one's price impact")

	// carried states are inputs only
	for k, s := range first.States {
		require.True(t, s.SqrtPriceX96.Eq(before[k]), "state %d mutated", k)
	}

	again, err := q.QuoteExactInputStateful(ctx, encoded, in, first.States)
	require.NoError(t, err)
	require.True(t, again.AmountOut().Eq(second.AmountOut()))
	for k := range again.States {
		require.True(t, again.States[k].SqrtPriceX96.Eq(second.States[k].SqrtPriceX96))
		require.True(t, again.States[k].Liquidity.Eq(second.States[k].Liquidity))
	}
}

func TestQuoteStateful_ShapeMismatch(t *testing.T) {
	q, source := newTestQuoter(t, false)
	ctx := context.Background()
	encoded := route(t, tokenA, tokenB, tokenC, tokenD)
	states := []*domain.CurveState{testCurve(3000), testCurve(3000)}

	_, err := q.QuoteExactInputStateful(ctx, encoded, amount("1000"), states)
	require.ErrorIs(t, err, domain.ErrStateShapeMismatch)
	_, err = q.QuoteExactOutputStateful(ctx, encoded, amount("1000"), states)
	require.ErrorIs(t, err, domain.ErrStateShapeMismatch)

	_, err = q.QuoteExactInputStateful(ctx, encoded, amount("1000"), []*domain.CurveState{testCurve(3000), nil, testCurve(3000)})
	require.ErrorIs(t, err, domain.ErrStateShapeMismatch)

	require.Zero(t, source.calls)
}

func TestQuote_Errors(t *testing.T) {
	q, _ := newTestQuoter(t, false)
	ctx := context.Background()

	tests := []struct {
		name    string
		encoded []byte
		amount  *uint256.Int
		want    error
	}{
		{"truncated path", route(t, tokenA, tokenB)[:40], amount("1000"), domain.ErrMalformedRoute},
		{"empty path", nil, amount("1000"), domain.ErrMalformedRoute},
		{"unknown pool", route(t, tokenA, tokenC), amount("1000"), domain.ErrUnresolvedPool},
		{"zero amount", route(t, tokenA, tokenB), amount("0"), domain.ErrInvalidAmount},
		{"exhausts liquidity", route(t, tokenA, tokenB), amount("1000000000000000000000000"), domain.ErrPartialFill},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.QuoteExactInput(ctx, tt.encoded, tt.amount)
			require.ErrorIs(t, err, tt.want)
			require.NotEqual(t, "internal", ErrorKind(err))
		})
	}
}

func TestQuote_CarriedFeeMismatch(t *testing.T) {
	q, _ := newTestQuoter(t, false)
	_, err := q.QuoteExactInputStateful(context.Background(), route(t, tokenA, tokenB), amount("1000"), []*domain.CurveState{testCurve(500)})
	require.ErrorIs(t, err, domain.ErrInvalidCurveState)
}

func TestQuote_PartialFillPolicy(t *testing.T) {
	ctx := context.Background()
	encoded := route(t, tokenA, tokenB, tokenC)
	huge := amount("1000000000000000000000000")

	abort, _ := newTestQuoter(t, false)
	_, err := abort.QuoteExactInputStateful(ctx, encoded, huge, nil)
	require.ErrorIs(t, err, domain.ErrPartialFill)
	require.Equal(t, "partial_fill", ErrorKind(err))

	propagate, _ := newTestQuoter(t, true)
	quote, err := propagate.QuoteExactInputStateful(ctx, encoded, huge, nil)
	require.NoError(t, err)
	require.True(t, quote.Partial)
	require.Equal(t, domain.StatusPartialFill, quote.Hops[0].Status)
	require.True(t, quote.Hops[0].AmountIn.Lt(huge))
	require.True(t, quote.Amounts[0].Eq(quote.Hops[0].AmountIn), "route input is what the first hop took")
	require.True(t, quote.Hops[1].AmountIn.Eq(quote.Amounts[1]))
	require.True(t, quote.Amounts[2].Eq(quote.Hops[1].AmountOut))

	// the amount-only entry point cannot carry the partial flag
	_, err = propagate.QuoteExactInput(ctx, encoded, huge)
	require.ErrorIs(t, err, domain.ErrPartialFill)
}

func TestQuoteExactOutput_PropagatedPartialFill(t *testing.T) {
	ctx := context.Background()
	encoded := route(t, tokenA, tokenB, tokenC)
	huge := amount("1000000000000000000000000")

	abort, _ := newTestQuoter(t, false)
	_, err := abort.QuoteExactOutputStateful(ctx, encoded, huge, nil)
	require.ErrorIs(t, err, domain.ErrPartialFill)

	propagate, _ := newTestQuoter(t, true)
	quote, err := propagate.QuoteExactOutputStateful(ctx, encoded, huge, nil)
	require.NoError(t, err)
	require.True(t, quote.Partial)

	// the first hop cannot supply what the second asked for, so the second
	// hop is re-priced from what the first delivers
	require.Equal(t, domain.StatusPartialFill, quote.Hops[0].Status)
	require.True(t, quote.AmountOut().Lt(huge))
	for k, hop := range quote.Hops {
		require.True(t, quote.Amounts[k].Eq(hop.AmountIn), "hop %d input", k)
		require.True(t, quote.Amounts[k+1].Eq(hop.AmountOut), "hop %d output", k)
	}

	// the re-priced tail matches an exact input quote of the delivered amount
	forward, err := propagate.QuoteExactInputStateful(ctx, route(t, tokenB, tokenC), quote.Amounts[1], nil)
	require.NoError(t, err)
	require.True(t, forward.AmountOut().Eq(quote.AmountOut()))
	require.True(t, forward.States[0].SqrtPriceX96.Eq(quote.States[1].SqrtPriceX96))

	_, err = propagate.QuoteExactOutput(ctx, encoded, huge)
	require.ErrorIs(t, err, domain.ErrPartialFill)
}

func TestQuoteSingle_PriceLimit(t *testing.T) {
	q, _ := newTestQuoter(t, false)
	ctx := context.Background()

	limit, err := clmm.GetSqrtRatioAtTick(-60)
	require.NoError(t, err)

	quote, err := q.QuoteExactInputSingle(ctx, SingleParams{
		TokenIn:           tokenA,
		TokenOut:          tokenB,
		Fee:               3000,
		Amount:            amount("1000000000000000000"),
		SqrtPriceLimitX96: limit,
	})
	require.NoError(t, err)
	require.True(t, quote.ZeroForOne)
	require.Equal(t, domain.StatusPartialFill, quote.Status)
	require.Equal(t, domain.PartialPriceLimit, quote.PartialReason)
	require.True(t, quote.SqrtPriceX96After.Eq(limit))

	_, err = q.QuoteExactOutputSingle(ctx, SingleParams{TokenIn: tokenA, TokenOut: tokenA, Fee: 3000, Amount: amount("1")})
	require.ErrorIs(t, err, domain.ErrMalformedRoute)
}

func TestQuoteSingle_ExactOutput(t *testing.T) {
	q, _ := newTestQuoter(t, false)

	quote, err := q.QuoteExactOutputSingle(context.Background(), SingleParams{
		TokenIn:  tokenB,
		TokenOut: tokenA,
		Fee:      3000,
		Amount:   amount("1000000000000000"),
	})
	require.NoError(t, err)
	require.False(t, quote.ZeroForOne)
	require.Equal(t, domain.StatusFilled, quote.Status)
	require.True(t, quote.AmountOut.Eq(amount("1000000000000000")))
	require.True(t, quote.SqrtPriceX96After.Gt(clmm.Q96), "buying token0 pushes the price up")
}

func BenchmarkQuoteExactInput(b *testing.B) {
	source := &memSource{states: make(map[solana.PublicKey]*domain.CurveState)}
	for _, pair := range [][2]solana.PublicKey{{tokenA, tokenB}, {tokenB, tokenC}, {tokenC, tokenD}} {
		addr, _ := memLocator{}.PoolAddress(pair[0], pair[1], 3000)
		source.states[addr] = testCurve(3000)
	}
	q := New(memLocator{}, source, simulator.New(0), false)
	encoded, _ := path.EncodeTokens([]solana.PublicKey{tokenA, tokenB, tokenC, tokenD}, []uint32{3000, 3000, 3000})
	in := amount("1000000000000000")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := q.QuoteExactInput(context.Background(), encoded, in); err != nil {
			b.Fatal(err)
		}
	}
}

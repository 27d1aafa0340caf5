package market

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/quote-engine/internal/config"
	"github.com/hxuan190/quote-engine/internal/domain"
)

func testToken(b byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = b
	pk[31] = 0x42
	return pk
}

func testPool(t *testing.T, locator *PDALocator, a, b byte, fee uint32) *domain.Pool {
	t.Helper()
	t0, t1 := domain.SortTokens(testToken(a), testToken(b))
	addr, err := locator.PoolAddress(t0, t1, fee)
	require.NoError(t, err)
	return &domain.Pool{
		Address: addr,
		Token0:  t0,
		Token1:  t1,
		Fee:     fee,
		Active:  true,
		Curve: &domain.CurveState{
			SqrtPriceX96: new(uint256.Int).Lsh(uint256.NewInt(1), 96),
			Liquidity:    uint256.NewInt(1_000_000_000_000_000_000),
			Tick:         0,
			TickSpacing:  60,
			Fee:          fee,
			Ticks: []domain.Tick{
				{Index: -600, LiquidityNet: big.NewInt(1_000_000_000_000_000_000)},
				{Index: 600, LiquidityNet: big.NewInt(-1_000_000_000_000_000_000)},
			},
		},
	}
}

func TestPDALocator_OrderIndependent(t *testing.T) {
	locator := NewPDALocator(solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))

	ab, err := locator.PoolAddress(testToken(1), testToken(2), 3000)
	require.NoError(t, err)
	ba, err := locator.PoolAddress(testToken(2), testToken(1), 3000)
	require.NoError(t, err)
	require.Equal(t, ab, ba)

	other, err := locator.PoolAddress(testToken(1), testToken(2), 500)
	require.NoError(t, err)
	require.NotEqual(t, ab, other, "fee tier must be part of the address")

	fresh := NewPDALocator(locator.ProgramID())
	again, err := fresh.PoolAddress(testToken(1), testToken(2), 3000)
	require.NoError(t, err)
	require.Equal(t, ab, again)
}

func TestPDALocator_IdenticalTokens(t *testing.T) {
	locator := NewPDALocator(solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))
	_, err := locator.PoolAddress(testToken(1), testToken(1), 3000)
	require.Error(t, err)
}

func TestRegistry_CurveStateIsolated(t *testing.T) {
	locator := NewPDALocator(solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))
	reg := NewRegistry()
	pool := testPool(t, locator, 1, 2, 3000)
	require.NoError(t, reg.Put(pool))

	// mutating the caller's pool after Put must not leak into the registry
	pool.Curve.Liquidity.SetUint64(1)

	state, err := reg.CurveState(context.Background(), pool.Address)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", state.Liquidity.Dec())

	state.SqrtPriceX96.SetUint64(7)
	again, err := reg.CurveState(context.Background(), pool.Address)
	require.NoError(t, err)
	require.NotEqual(t, uint64(7), again.SqrtPriceX96.Uint64())
}

func TestRegistry_Unresolved(t *testing.T) {
	locator := NewPDALocator(solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))
	reg := NewRegistry()
	pool := testPool(t, locator, 1, 2, 3000)

	_, err := reg.CurveState(context.Background(), pool.Address)
	require.ErrorIs(t, err, domain.ErrUnresolvedPool)

	require.NoError(t, reg.Put(pool))
	require.Equal(t, 1, reg.ReadyCount())

	require.True(t, reg.SetActive(pool.Address, false))
	_, err = reg.CurveState(context.Background(), pool.Address)
	require.ErrorIs(t, err, domain.ErrUnresolvedPool)
	require.Equal(t, 0, reg.ReadyCount())
	require.Equal(t, 1, reg.Len())

	require.False(t, reg.SetActive(testToken(9), true))
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	locator := NewPDALocator(solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))
	reg := NewRegistry()

	pool := testPool(t, locator, 1, 2, 3000)
	pool.Curve.Fee = 500
	require.ErrorIs(t, reg.Put(pool), domain.ErrInvalidCurveState)

	pool = testPool(t, locator, 1, 2, 3000)
	pool.Token0, pool.Token1 = pool.Token1, pool.Token0
	require.ErrorIs(t, reg.Put(pool), domain.ErrInvalidCurveState)

	pool = testPool(t, locator, 1, 2, 3000)
	pool.Curve.Ticks[0].Index = 601
	require.ErrorIs(t, reg.Put(pool), domain.ErrInvalidCurveState)

	pool = testPool(t, locator, 1, 2, 3000)
	pool.Curve.TickSpacing = 1 << 24
	pool.Curve.Ticks = nil
	require.ErrorIs(t, reg.Put(pool), domain.ErrInvalidCurveState)

	pool = testPool(t, locator, 1, 2, 3000)
	pool.Curve.Ticks = append(pool.Curve.Ticks, domain.Tick{Index: 887280, LiquidityNet: big.NewInt(0)})
	require.ErrorIs(t, reg.Put(pool), domain.ErrInvalidCurveState)

	require.Equal(t, 0, reg.Len())
}

func TestRegistry_AllSorted(t *testing.T) {
	locator := NewPDALocator(solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))
	reg := NewRegistry()
	for _, fee := range []uint32{100, 500, 3000, 10000} {
		require.NoError(t, reg.Put(testPool(t, locator, 1, 2, fee)))
	}

	all := reg.All()
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		require.Negative(t, bytes.Compare(all[i-1].Address[:], all[i].Address[:]))
	}
}

func TestService_Upsert(t *testing.T) {
	svc, err := NewService(&config.StorageConfig{}, solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))
	require.NoError(t, err)

	pool := testPool(t, svc.locator, 3, 4, 500)
	want := pool.Address
	pool.Address = solana.PublicKey{}

	stored, err := svc.Upsert(pool)
	require.NoError(t, err)
	require.Equal(t, want, stored.Address)
	require.True(t, stored.IsReady())

	state, err := svc.CurveState(context.Background(), want)
	require.NoError(t, err)
	require.Equal(t, uint32(500), state.Fee)

	wrong := testPool(t, svc.locator, 3, 4, 500)
	wrong.Address = testToken(7)
	_, err = svc.Upsert(wrong)
	require.ErrorIs(t, err, domain.ErrInvalidCurveState)

	require.NoError(t, svc.SetActive(want, false))
	_, err = svc.CurveState(context.Background(), want)
	require.ErrorIs(t, err, domain.ErrUnresolvedPool)

	require.ErrorIs(t, svc.SetActive(testToken(8), true), domain.ErrUnresolvedPool)

	count, updates := svc.GetStats()
	require.Equal(t, 1, count)
	require.Equal(t, uint64(1), updates)
}

func TestAddressCache_EvictsLeastRecent(t *testing.T) {
	c := newAddressCache[int, string](2)
	c.Set(1, "a")
	c.Set(2, "b")

	_, ok := c.Get(1)
	require.True(t, ok)

	c.Set(3, "c")
	require.Equal(t, 2, c.Len())

	_, ok = c.Get(2)
	require.False(t, ok, "2 was least recently used")
	v, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, "a", v)

	c.Set(1, "z")
	v, _ = c.Get(1)
	require.Equal(t, "z", v)
	require.Equal(t, 2, c.Len())
}

func TestRegistry_SetActiveKeepsConcurrentPut(t *testing.T) {
	locator := NewPDALocator(solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))
	reg := NewRegistry()
	pool := testPool(t, locator, 1, 2, 3000)
	require.NoError(t, reg.Put(pool))

	const slots = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for slot := uint64(1); slot <= slots; slot++ {
			next := *pool
			next.LastUpdatedSlot = slot
			if err := reg.Put(&next); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < slots; i++ {
			if !reg.SetActive(pool.Address, true) {
				t.Error("pool vanished")
				return
			}
		}
	}()
	wg.Wait()

	stored, ok := reg.Get(pool.Address)
	require.True(t, ok)
	require.Equal(t, uint64(slots), stored.LastUpdatedSlot)
	require.True(t, stored.IsReady())

	require.False(t, reg.SetActive(testToken(9), true))
}

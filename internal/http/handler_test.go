package http

import (
	"bytes"
	"encoding/json"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/quote-engine/internal/adapters/persistence"
	"github.com/hxuan190/quote-engine/internal/config"
	"github.com/hxuan190/quote-engine/internal/domain"
	"github.com/hxuan190/quote-engine/internal/http/middlewares"
	"github.com/hxuan190/quote-engine/internal/services/market"
	"github.com/hxuan190/quote-engine/internal/services/quoter"
	"github.com/hxuan190/quote-engine/internal/services/simulator"
)

const testAdminToken = "secret"

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func testToken(b byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = b
	pk[31] = 7
	return pk
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mkt, err := market.NewService(&config.StorageConfig{}, solana.MustPublicKeyFromBase58(config.DefaultPoolProgramID))
	require.NoError(t, err)
	q := quoter.New(mkt, mkt, simulator.New(0), false)

	conf := &config.GeneralConfig{HTTPHost: "localhost", HTTPPort: "0", Env: config.DevEnv, AdminToken: testAdminToken}
	return NewRouter(conf, q, mkt)
}

func testPoolBody(t0, t1 solana.PublicKey) persistence.StoredPool {
	return persistence.StoredPool{
		Token0: t0.String(),
		Token1: t1.String(),
		Fee:    3000,
		Active: true,
		Curve: &persistence.StoredCurve{
			SqrtPriceX96: "79228162514264337593543950336",
			Liquidity:    "1500000000000000000",
			Tick:         0,
			TickSpacing:  60,
			Ticks: []persistence.StoredTick{
				{Index: -6000, LiquidityNet: "500000000000000000"},
				{Index: -600, LiquidityNet: "1000000000000000000"},
				{Index: 600, LiquidityNet: "-1000000000000000000"},
				{Index: 6000, LiquidityNet: "-500000000000000000"},
			},
		},
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, url string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func seedPools(t *testing.T, r *gin.Engine, pairs ...[2]solana.PublicKey) {
	t.Helper()
	admin := map[string]string{middlewares.AdminTokenHeader: testAdminToken}
	for _, pair := range pairs {
		t0, t1 := domain.SortTokens(pair[0], pair[1])
		w := doJSON(t, r, gohttp.MethodPost, "/api/v1/admin/pools", testPoolBody(t0, t1), admin)
		require.Equal(t, gohttp.StatusOK, w.Code, w.Body.String())
	}
}

func TestAdminAuth(t *testing.T) {
	r := newTestRouter(t)
	body := testPoolBody(testToken(1), testToken(2))

	w := doJSON(t, r, gohttp.MethodPost, "/api/v1/admin/pools", body, nil)
	require.Equal(t, gohttp.StatusUnauthorized, w.Code)

	w = doJSON(t, r, gohttp.MethodPost, "/api/v1/admin/pools", body, map[string]string{middlewares.AdminTokenHeader: "wrong"})
	require.Equal(t, gohttp.StatusUnauthorized, w.Code)
}

func TestPoolEndpoints(t *testing.T) {
	r := newTestRouter(t)
	seedPools(t, r, [2]solana.PublicKey{testToken(1), testToken(2)})

	w := doJSON(t, r, gohttp.MethodGet, "/api/v1/pools", nil, nil)
	require.Equal(t, gohttp.StatusOK, w.Code)
	list := decode[PoolListResponse](t, w)
	require.Equal(t, 1, list.Data.Total)
	require.Equal(t, "1", list.Data.Pools[0].Price)

	w = doJSON(t, r, gohttp.MethodGet, "/api/v1/pools/"+list.Data.Pools[0].Address, nil, nil)
	require.Equal(t, gohttp.StatusOK, w.Code)
	detail := decode[PoolDetailResponse](t, w)
	require.True(t, detail.Data.Ready)
	require.Len(t, detail.Data.Curve.Ticks, 4)

	w = doJSON(t, r, gohttp.MethodGet, "/api/v1/pools/"+testToken(9).String(), nil, nil)
	require.Equal(t, gohttp.StatusNotFound, w.Code)

	w = doJSON(t, r, gohttp.MethodGet, "/api/v1/pools/stats", nil, nil)
	require.Equal(t, gohttp.StatusOK, w.Code)
	stats := decode[PoolStatsResponse](t, w)
	require.Equal(t, 1, stats.Data.PoolCount)
	require.Equal(t, 1, stats.Data.ReadyCount)

	// a 500 pip pool, then deactivate it: it stays low fee but is no longer ready
	admin := map[string]string{middlewares.AdminTokenHeader: testAdminToken}
	low := testPoolBody(testToken(1), testToken(2))
	low.Fee = 500
	w = doJSON(t, r, gohttp.MethodPost, "/api/v1/admin/pools", low, admin)
	require.Equal(t, gohttp.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, gohttp.MethodGet, "/api/v1/pools?lowFee=true", nil, nil)
	lowList := decode[PoolListResponse](t, w)
	require.Equal(t, 1, lowList.Data.Total)
	require.Equal(t, uint32(500), lowList.Data.Pools[0].Fee)

	w = doJSON(t, r, gohttp.MethodPut, "/api/v1/admin/pools/"+lowList.Data.Pools[0].Address+"/active", map[string]bool{"active": false}, admin)
	require.Equal(t, gohttp.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, gohttp.MethodGet, "/api/v1/pools?ready=true", nil, nil)
	readyList := decode[PoolListResponse](t, w)
	require.Equal(t, 1, readyList.Data.Total)
	require.Equal(t, uint32(3000), readyList.Data.Pools[0].Fee)

	w = doJSON(t, r, gohttp.MethodGet, "/api/v1/pools?ready=true&lowFee=true", nil, nil)
	require.Equal(t, 0, decode[PoolListResponse](t, w).Data.Total)

	// unsorted tokens are rejected
	bad := testPoolBody(testToken(2), testToken(1))
	w = doJSON(t, r, gohttp.MethodPost, "/api/v1/admin/pools", bad, map[string]string{middlewares.AdminTokenHeader: testAdminToken})
	require.Equal(t, gohttp.StatusBadRequest, w.Code)
}

func TestQuoteEndpoint(t *testing.T) {
	r := newTestRouter(t)
	a, b, c := testToken(1), testToken(2), testToken(3)
	seedPools(t, r, [2]solana.PublicKey{a, b}, [2]solana.PublicKey{b, c})

	url := "/api/v1/quote?tokens=" + a.String() + "," + b.String() + "," + c.String() + "&fees=3000,3000&amount=1000000000000000&swapMode=ExactIn"
	w := doJSON(t, r, gohttp.MethodGet, url, nil, nil)
	require.Equal(t, gohttp.StatusOK, w.Code, w.Body.String())
	quote := decode[QuoteResponse](t, w)
	require.True(t, quote.Success)
	require.Equal(t, "ExactIn", quote.Data.SwapMode)
	require.Equal(t, "1000000000000000", quote.Data.AmountIn)
	require.Len(t, quote.Data.Amounts, 3)
	require.Len(t, quote.Data.Hops, 2)
	require.Equal(t, quote.Data.Amounts[2], quote.Data.AmountOut)
	require.Equal(t, quote.Data.Amounts[1], quote.Data.Hops[1].AmountIn)
	require.Empty(t, quote.Data.Carrier)
	require.False(t, quote.Data.Partial)
	require.Equal(t, "none", quote.Data.PriceImpactSeverity)
	require.Less(t, quote.Data.PriceImpactBps, uint16(100))

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"bad mode", "tokens=" + a.String() + "," + b.String() + "&fees=3000&amount=1&swapMode=Sideways", gohttp.StatusBadRequest},
		{"fee count", "tokens=" + a.String() + "," + b.String() + "&fees=3000,500&amount=1&swapMode=ExactIn", gohttp.StatusBadRequest},
		{"zero amount", "tokens=" + a.String() + "," + b.String() + "&fees=3000&amount=0&swapMode=ExactIn", gohttp.StatusBadRequest},
		{"no pool", "tokens=" + a.String() + "," + c.String() + "&fees=3000&amount=1000&swapMode=ExactIn", gohttp.StatusNotFound},
		{"too large", "tokens=" + a.String() + "," + b.String() + "&fees=3000&amount=1000000000000000000000000&swapMode=ExactIn", gohttp.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, gohttp.MethodGet, "/api/v1/quote?"+tt.query, nil, nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.False(t, decode[QuoteResponse](t, w).Success)
		})
	}
}

func TestStatefulQuoteEndpoint(t *testing.T) {
	r := newTestRouter(t)
	a, b := testToken(1), testToken(2)
	seedPools(t, r, [2]solana.PublicKey{a, b})

	req := StatefulQuoteRequest{
		Tokens:   []string{a.String(), b.String()},
		Fees:     []uint32{3000},
		Amount:   "50000000000000000",
		SwapMode: "ExactIn",
	}
	w := doJSON(t, r, gohttp.MethodPost, "/api/v1/quote/stateful", req, nil)
	require.Equal(t, gohttp.StatusOK, w.Code, w.Body.String())
	first := decode[QuoteResponse](t, w)
	require.NotEmpty(t, first.Data.Carrier)

	req.Carrier = first.Data.Carrier
	w = doJSON(t, r, gohttp.MethodPost, "/api/v1/quote/stateful", req, nil)
	require.Equal(t, gohttp.StatusOK, w.Code, w.Body.String())
	second := decode[QuoteResponse](t, w)
	// the second trade starts where the first left the price
	require.True(t, uint256.MustFromDecimal(second.Data.AmountOut).Lt(uint256.MustFromDecimal(first.Data.AmountOut)))

	req.Carrier = "%%%"
	w = doJSON(t, r, gohttp.MethodPost, "/api/v1/quote/stateful", req, nil)
	require.Equal(t, gohttp.StatusBadRequest, w.Code)

	req.Carrier = first.Data.Carrier
	req.Tokens = []string{a.String(), b.String(), a.String()}
	req.Fees = []uint32{3000, 3000}
	w = doJSON(t, r, gohttp.MethodPost, "/api/v1/quote/stateful", req, nil)
	require.Equal(t, gohttp.StatusBadRequest, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "states"), w.Body.String())
}

func TestSingleQuoteEndpoint(t *testing.T) {
	r := newTestRouter(t)
	a, b := testToken(1), testToken(2)
	seedPools(t, r, [2]solana.PublicKey{a, b})

	url := "/api/v1/quote/single?tokenIn=" + b.String() + "&tokenOut=" + a.String() + "&fee=3000&amount=1000000000000000&swapMode=ExactOut"
	w := doJSON(t, r, gohttp.MethodGet, url, nil, nil)
	require.Equal(t, gohttp.StatusOK, w.Code, w.Body.String())
	single := decode[SingleQuoteResponse](t, w)
	require.False(t, single.Data.ZeroForOne)
	require.Equal(t, "1000000000000000", single.Data.AmountOut)
	require.Equal(t, "filled", single.Data.Status)

	// a limit below the current price is invalid for a one-for-zero trade
	w = doJSON(t, r, gohttp.MethodGet, url+"&sqrtPriceLimitX96=4295128740", nil, nil)
	require.Equal(t, gohttp.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, gohttp.MethodGet, "/health", nil, nil)
	require.Equal(t, gohttp.StatusOK, w.Code)
}

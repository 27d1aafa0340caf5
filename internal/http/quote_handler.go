package http

import (
	"context"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"github.com/hxuan190/quote-engine/internal/clmm"
	"github.com/hxuan190/quote-engine/internal/common"
	"github.com/hxuan190/quote-engine/internal/domain"
	"github.com/hxuan190/quote-engine/internal/http/httputil"
	"github.com/hxuan190/quote-engine/internal/path"
	"github.com/hxuan190/quote-engine/internal/services/quoter"
)

const (
	swapModeExactIn  = "ExactIn"
	swapModeExactOut = "ExactOut"

	defaultSlippageBps = 50
	bpsDenominator     = 10_000
)

var u256Bps = uint256.NewInt(bpsDenominator)

// QuoteService is the part of the quoter the HTTP API serves.
type QuoteService interface {
	QuoteExactInputStateful(ctx context.Context, encoded []byte, amountIn *uint256.Int, carried []*domain.CurveState) (*domain.MultiHopQuote, error)
	QuoteExactOutputStateful(ctx context.Context, encoded []byte, amountOut *uint256.Int, carried []*domain.CurveState) (*domain.MultiHopQuote, error)
	QuoteExactInputSingle(ctx context.Context, p quoter.SingleParams) (*domain.SingleQuote, error)
	QuoteExactOutputSingle(ctx context.Context, p quoter.SingleParams) (*domain.SingleQuote, error)
}

type QuoteHandler struct {
	quoter QuoteService
}

func NewQuoteHandler(quoter QuoteService) *QuoteHandler {
	return &QuoteHandler{quoter: quoter}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
	pub.POST("/stateful", h.postStatefulQuote)
	pub.GET("/single", h.getSingleQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest represents the parameters for quoting a fixed route
type QuoteRequest struct {
	// Comma separated token path, first input to final output
	Tokens string `form:"tokens" binding:"required" example:"So11111111111111111111111111111111111111112,uSd2czE61Evaf76RNbq4KPpXnkiL3irdzgLFUMe3NoG"`

	// Comma separated fee tiers in pips, one per hop
	Fees string `form:"fees" binding:"required" example:"3000"`

	// Amount in smallest token units. The route input for ExactIn, the route output for ExactOut
	Amount string `form:"amount" binding:"required" example:"1000000000"`

	SwapMode string `form:"swapMode" binding:"required" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Slippage tolerance in basis points. Default: 50
	SlippageBps uint16 `form:"slippageBps" example:"50"`
}

// StatefulQuoteRequest quotes a route against carried curve states
type StatefulQuoteRequest struct {
	Tokens      []string `json:"tokens" binding:"required"`
	Fees        []uint32 `json:"fees" binding:"required"`
	Amount      string   `json:"amount" binding:"required" example:"1000000000"`
	SwapMode    string   `json:"swapMode" binding:"required" enums:"ExactIn,ExactOut"`
	SlippageBps uint16   `json:"slippageBps" example:"50"`

	// Base64 carrier returned by a previous stateful quote on the same route.
	// Empty starts from the current pool states.
	Carrier string `json:"carrier"`
}

// HopInfo describes one pool traversal of a quoted route
type HopInfo struct {
	PoolAddress       string `json:"poolAddress"`
	TokenIn           string `json:"tokenIn"`
	TokenOut          string `json:"tokenOut"`
	Fee               uint32 `json:"fee" example:"3000"`
	AmountIn          string `json:"amountIn"`
	AmountOut         string `json:"amountOut"`
	FeeAmount         string `json:"feeAmount"`
	SqrtPriceX96After string `json:"sqrtPriceX96After"`
	// Token1 per token0 after the hop, in raw units
	PriceAfter     string `json:"priceAfter"`
	PriceImpactBps uint16 `json:"priceImpactBps" example:"12"`
	TicksCrossed   uint32 `json:"ticksCrossed"`
	Status         string `json:"status" enums:"filled,partial"`
}

// QuoteResponse contains the amounts at every point of the route
type QuoteResponse struct {
	SwapMode  string `json:"swapMode" example:"ExactIn"`
	AmountIn  string `json:"amountIn" example:"1000000000"`
	AmountOut string `json:"amountOut" example:"145320000"`

	// Minimum output (ExactIn) or maximum input (ExactOut) after slippage
	OtherAmountThreshold string `json:"otherAmountThreshold" example:"144593400"`
	SlippageBps          uint16 `json:"slippageBps" example:"50"`

	// Amounts[0] is the route input, Amounts[len(hops)] the route output
	Amounts      []string  `json:"amounts"`
	RoutePath    []string  `json:"routePath"`
	Hops         []HopInfo `json:"hops"`
	HopCount     int       `json:"hopCount" example:"1"`
	TicksCrossed uint32    `json:"ticksCrossed"`

	// Compounded over all hops, fees excluded
	PriceImpactBps      uint16 `json:"priceImpactBps" example:"12"`
	PriceImpactSeverity string `json:"priceImpactSeverity" enums:"none,low,moderate,high,extreme"`
	PriceImpactWarning  string `json:"priceImpactWarning,omitempty"`

	// True when a hop could not fill and its smaller amount was carried forward
	Partial bool `json:"partial"`

	// Base64 carrier holding every hop's post-trade state. Stateful quotes only
	Carrier string `json:"carrier,omitempty"`
}

// SingleQuoteResponse is the result of a one-pool quote
type SingleQuoteResponse struct {
	PoolAddress         string `json:"poolAddress"`
	AmountIn            string `json:"amountIn"`
	AmountOut           string `json:"amountOut"`
	FeeAmount           string `json:"feeAmount"`
	SqrtPriceX96After   string `json:"sqrtPriceX96After"`
	PriceAfter          string `json:"priceAfter"`
	PriceImpactBps      uint16 `json:"priceImpactBps"`
	PriceImpactSeverity string `json:"priceImpactSeverity" enums:"none,low,moderate,high,extreme"`
	TicksCrossed        uint32 `json:"ticksCrossed"`
	ZeroForOne          bool   `json:"zeroForOne"`
	Status              string `json:"status" enums:"filled,partial"`
	PartialReason       string `json:"partialReason,omitempty" enums:"price_limit,liquidity_exhausted"`
}

type parsedQuoteRequest struct {
	tokens      []solana.PublicKey
	route       []byte
	amount      *uint256.Int
	exactIn     bool
	slippageBps uint16
}

func parseQuoteParams(tokenStrs []string, fees []uint32, amountStr, swapMode string, slippageBps uint16) (*parsedQuoteRequest, *common.HttpError) {
	tokens := make([]solana.PublicKey, len(tokenStrs))
	for i, s := range tokenStrs {
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
		if err != nil {
			return nil, common.HTTPErrorBadRequest("invalid token address " + s)
		}
		tokens[i] = pk
	}

	route, err := path.EncodeTokens(tokens, fees)
	if err != nil {
		return nil, common.HTTPErrorBadRequest(err.Error())
	}

	amount, herr := parseAmount(amountStr)
	if herr != nil {
		return nil, herr
	}

	exactIn, herr := parseSwapMode(swapMode)
	if herr != nil {
		return nil, herr
	}

	if slippageBps == 0 {
		slippageBps = defaultSlippageBps
	}
	if slippageBps >= bpsDenominator {
		return nil, common.HTTPErrorBadRequest("invalid slippageBps: must be below 10000")
	}

	return &parsedQuoteRequest{
		tokens:      tokens,
		route:       route,
		amount:      amount,
		exactIn:     exactIn,
		slippageBps: slippageBps,
	}, nil
}

func parseAmount(s string) (*uint256.Int, *common.HttpError) {
	amount, err := uint256.FromDecimal(s)
	if err != nil || amount.IsZero() {
		return nil, common.HTTPErrorBadRequest("invalid amount: must be a positive integer")
	}
	return amount, nil
}

func parseSwapMode(s string) (bool, *common.HttpError) {
	switch s {
	case swapModeExactIn:
		return true, nil
	case swapModeExactOut:
		return false, nil
	default:
		return false, common.HTTPErrorBadRequest("invalid swapMode: must be ExactIn or ExactOut")
	}
}

func parseFees(s string) ([]uint32, *common.HttpError) {
	parts := strings.Split(s, ",")
	fees := make([]uint32, len(parts))
	for i, p := range parts {
		fee, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, common.HTTPErrorBadRequest("invalid fee " + p)
		}
		fees[i] = uint32(fee)
	}
	return fees, nil
}

func (h *QuoteHandler) quote(ctx context.Context, req *parsedQuoteRequest, carried []*domain.CurveState) (*domain.MultiHopQuote, error) {
	if req.exactIn {
		return h.quoter.QuoteExactInputStateful(ctx, req.route, req.amount, carried)
	}
	return h.quoter.QuoteExactOutputStateful(ctx, req.route, req.amount, carried)
}

// otherAmountThreshold applies slippage: the minimum output of an exact input
// quote, or the maximum input of an exact output quote.
func otherAmountThreshold(quote *domain.MultiHopQuote, slippageBps uint16) (*uint256.Int, error) {
	if quote.ExactIn {
		return clmm.MulDiv(quote.AmountOut(), uint256.NewInt(uint64(bpsDenominator-slippageBps)), u256Bps)
	}
	return clmm.MulDivRoundingUp(quote.AmountIn(), u256Bps, uint256.NewInt(uint64(bpsDenominator-slippageBps)))
}

func buildQuoteResponse(req *parsedQuoteRequest, quote *domain.MultiHopQuote) (*QuoteResponse, error) {
	threshold, err := otherAmountThreshold(quote, req.slippageBps)
	if err != nil {
		return nil, err
	}

	swapMode := swapModeExactOut
	if quote.ExactIn {
		swapMode = swapModeExactIn
	}

	amounts := make([]string, len(quote.Amounts))
	for i, a := range quote.Amounts {
		amounts[i] = a.Dec()
	}

	routePath := make([]string, len(req.tokens))
	for i, t := range req.tokens {
		routePath[i] = t.String()
	}

	hops := make([]HopInfo, len(quote.Hops))
	for i, hop := range quote.Hops {
		hops[i] = HopInfo{
			PoolAddress:       hop.Pool.String(),
			TokenIn:           hop.Hop.TokenIn.String(),
			TokenOut:          hop.Hop.TokenOut.String(),
			Fee:               hop.Hop.Fee,
			AmountIn:          hop.AmountIn.Dec(),
			AmountOut:         hop.AmountOut.Dec(),
			FeeAmount:         hop.FeeAmount.Dec(),
			SqrtPriceX96After: hop.SqrtPriceX96After.Dec(),
			PriceAfter:        domain.SqrtPriceToPrice(hop.SqrtPriceX96After).String(),
			PriceImpactBps:    hop.PriceImpactBps,
			TicksCrossed:      hop.TicksCrossed,
			Status:            hop.Status.String(),
		}
	}

	impact := quote.PriceImpactBps()
	return &QuoteResponse{
		SwapMode:             swapMode,
		AmountIn:             quote.AmountIn().Dec(),
		AmountOut:            quote.AmountOut().Dec(),
		OtherAmountThreshold: threshold.Dec(),
		SlippageBps:          req.slippageBps,
		Amounts:              amounts,
		RoutePath:            routePath,
		Hops:                 hops,
		HopCount:             len(hops),
		TicksCrossed:         quote.TotalTicksCrossed(),
		PriceImpactBps:       impact,
		PriceImpactSeverity:  string(quoter.GetPriceImpactSeverity(impact)),
		PriceImpactWarning:   quoter.GetPriceImpactWarning(impact),
		Partial:              quote.Partial,
	}, nil
}

// @Summary Quote a route
// @Description Simulates a swap along a fixed token path against the current pool states.
// @Description The amount is the route input for ExactIn and the route output for ExactOut.
// @Tags quote
// @Produce json
// @Param tokens query string true "Comma separated token path"
// @Param fees query string true "Comma separated fee tiers in pips, one per hop"
// @Param amount query string true "Amount in smallest token units"
// @Param swapMode query string true "Swap mode" Enums(ExactIn, ExactOut)
// @Param slippageBps query int false "Slippage tolerance in basis points" default(50)
// @Success 200 {object} QuoteResponse
// @Failure 400 {object} httputil.Response "Malformed route or amount"
// @Failure 404 {object} httputil.Response "A hop has no pool"
// @Failure 422 {object} httputil.Response "The route cannot fill the amount"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.BadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	fees, herr := parseFees(req.Fees)
	if herr != nil {
		httputil.HTTPError(c, herr)
		return
	}
	parsed, herr := parseQuoteParams(strings.Split(req.Tokens, ","), fees, req.Amount, req.SwapMode, req.SlippageBps)
	if herr != nil {
		httputil.HTTPError(c, herr)
		return
	}

	quote, err := h.quote(c.Request.Context(), parsed, nil)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	resp, err := buildQuoteResponse(parsed, quote)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.Success(c, resp)
}

// @Summary Quote a route against carried state
// @Description Quotes a route starting each hop from the states in carrier, and returns the
// @Description post-trade states as a new carrier. Chaining the carrier prices a sequence of
// @Description trades on the same route as if each had executed.
// @Tags quote
// @Accept json
// @Produce json
// @Param request body StatefulQuoteRequest true "Route, amount and carrier"
// @Success 200 {object} QuoteResponse
// @Failure 400 {object} httputil.Response "Malformed route, amount or carrier"
// @Failure 404 {object} httputil.Response "A hop has no pool"
// @Failure 422 {object} httputil.Response "The route cannot fill the amount"
// @Router /api/v1/quote/stateful [post]
func (h *QuoteHandler) postStatefulQuote(c *gin.Context) {
	var req StatefulQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	parsed, herr := parseQuoteParams(req.Tokens, req.Fees, req.Amount, req.SwapMode, req.SlippageBps)
	if herr != nil {
		httputil.HTTPError(c, herr)
		return
	}

	carried, err := quoter.DecodeCarrierString(req.Carrier)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	quote, err := h.quote(c.Request.Context(), parsed, carried)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	resp, err := buildQuoteResponse(parsed, quote)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	if resp.Carrier, err = quoter.EncodeCarrierString(quote.States); err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.Success(c, resp)
}

// SingleQuoteRequest represents the parameters for a one-pool quote
type SingleQuoteRequest struct {
	TokenIn  string `form:"tokenIn" binding:"required"`
	TokenOut string `form:"tokenOut" binding:"required"`
	Fee      uint32 `form:"fee" example:"3000"`
	Amount   string `form:"amount" binding:"required"`
	SwapMode string `form:"swapMode" binding:"required" enums:"ExactIn,ExactOut"`

	// Optional Q64.96 square root price the trade may not cross. Reaching it
	// returns a partial fill instead of an error
	SqrtPriceLimitX96 string `form:"sqrtPriceLimitX96"`
}

// @Summary Quote a single pool
// @Description Simulates a swap in one pool, optionally bounded by a square root price limit.
// @Tags quote
// @Produce json
// @Param tokenIn query string true "Input token"
// @Param tokenOut query string true "Output token"
// @Param fee query int true "Fee tier in pips"
// @Param amount query string true "Amount in smallest token units"
// @Param swapMode query string true "Swap mode" Enums(ExactIn, ExactOut)
// @Param sqrtPriceLimitX96 query string false "Q64.96 square root price limit"
// @Success 200 {object} SingleQuoteResponse
// @Failure 400 {object} httputil.Response "Invalid parameters or price limit"
// @Failure 404 {object} httputil.Response "No pool for the pair and fee"
// @Failure 422 {object} httputil.Response "The pool cannot fill the amount"
// @Router /api/v1/quote/single [get]
func (h *QuoteHandler) getSingleQuote(c *gin.Context) {
	var req SingleQuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.BadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	tokenIn, err := solana.PublicKeyFromBase58(req.TokenIn)
	if err != nil {
		httputil.BadRequest(c, "invalid tokenIn address")
		return
	}
	tokenOut, err := solana.PublicKeyFromBase58(req.TokenOut)
	if err != nil {
		httputil.BadRequest(c, "invalid tokenOut address")
		return
	}
	amount, herr := parseAmount(req.Amount)
	if herr != nil {
		httputil.HTTPError(c, herr)
		return
	}
	exactIn, herr := parseSwapMode(req.SwapMode)
	if herr != nil {
		httputil.HTTPError(c, herr)
		return
	}

	params := quoter.SingleParams{TokenIn: tokenIn, TokenOut: tokenOut, Fee: req.Fee, Amount: amount}
	if req.SqrtPriceLimitX96 != "" {
		if params.SqrtPriceLimitX96, err = uint256.FromDecimal(req.SqrtPriceLimitX96); err != nil {
			httputil.BadRequest(c, "invalid sqrtPriceLimitX96")
			return
		}
	}

	var quote *domain.SingleQuote
	if exactIn {
		quote, err = h.quoter.QuoteExactInputSingle(c.Request.Context(), params)
	} else {
		quote, err = h.quoter.QuoteExactOutputSingle(c.Request.Context(), params)
	}
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	httputil.Success(c, SingleQuoteResponse{
		PoolAddress:         quote.Pool.String(),
		AmountIn:            quote.AmountIn.Dec(),
		AmountOut:           quote.AmountOut.Dec(),
		FeeAmount:           quote.FeeAmount.Dec(),
		SqrtPriceX96After:   quote.SqrtPriceX96After.Dec(),
		PriceAfter:          domain.SqrtPriceToPrice(quote.SqrtPriceX96After).String(),
		PriceImpactBps:      quote.PriceImpactBps,
		PriceImpactSeverity: string(quoter.GetPriceImpactSeverity(quote.PriceImpactBps)),
		TicksCrossed:        quote.TicksCrossed,
		ZeroForOne:          quote.ZeroForOne,
		Status:              quote.Status.String(),
		PartialReason:       quote.PartialReason.String(),
	})
}

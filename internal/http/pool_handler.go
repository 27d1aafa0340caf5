package http

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/quote-engine/internal/adapters/persistence"
	"github.com/hxuan190/quote-engine/internal/domain"
	"github.com/hxuan190/quote-engine/internal/http/httputil"
)

// PoolService is the registry surface the HTTP API serves.
type PoolService interface {
	Pools() []*domain.Pool
	Pool(addr solana.PublicKey) (*domain.Pool, bool)
	Upsert(pool *domain.Pool) (*domain.Pool, error)
	SetActive(addr solana.PublicKey, active bool) error
	GetStats() (int, uint64)
}

type PoolHandler struct {
	pools PoolService
}

func NewPoolHandler(pools PoolService) *PoolHandler {
	return &PoolHandler{pools: pools}
}

func (h *PoolHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listPools)
	pub.GET("/stats", h.getStats)
	pub.GET("/:address", h.getPool)

	admin.POST("", h.upsertPool)
	admin.PUT("/:address/active", h.setActive)
}

func (h *PoolHandler) Root() string {
	return "/pools"
}

// PoolStatsResponse contains aggregated statistics about registered pools
type PoolStatsResponse struct {
	// Number of registered pools
	PoolCount int `json:"pool_count" example:"42"`

	// Number of pools that can serve quotes
	ReadyCount int `json:"ready_count" example:"40"`

	// Pool upserts accepted since service start
	UpdateCount uint64 `json:"update_count" example:"1290"`
}

func (h *PoolHandler) getStats(c *gin.Context) {
	poolCount, updateCount := h.pools.GetStats()
	ready := 0
	for _, pool := range h.pools.Pools() {
		if pool.IsReady() {
			ready++
		}
	}
	httputil.Success(c, PoolStatsResponse{
		PoolCount:   poolCount,
		ReadyCount:  ready,
		UpdateCount: updateCount,
	})
}

// PoolInfo contains basic information about a pool
type PoolInfo struct {
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	// Fee tier in pips
	Fee    uint32 `json:"fee" example:"3000"`
	Active bool   `json:"active" example:"true"`
	// Token1 per token0 in raw units
	Price string `json:"price" example:"1.000000000000000000"`
}

// PoolListResponse contains a page of pools ordered by address
type PoolListResponse struct {
	Pools []PoolInfo `json:"pools"`
	Total int        `json:"total" example:"42"`
	Page  int        `json:"page" example:"1"`
	Limit int        `json:"limit" example:"100"`
	Pages int        `json:"pages" example:"1"`
}

// @Summary List pools
// @Tags pools
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size, max 500" default(100)
// @Param ready query bool false "Only pools that can serve quotes"
// @Param lowFee query bool false "Only fee tiers below 3000 pips"
// @Success 200 {object} PoolListResponse
// @Router /api/v1/pools [get]
func (h *PoolHandler) listPools(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	var mask domain.PoolFlags
	if c.Query("ready") == "true" {
		mask |= domain.FlagReadyMask
	}
	if c.Query("lowFee") == "true" {
		mask |= domain.FlagLowFee
	}

	allPools := h.pools.Pools()
	if mask != 0 {
		filtered := allPools[:0]
		for _, pool := range allPools {
			if pool.HasFlags(mask) {
				filtered = append(filtered, pool)
			}
		}
		allPools = filtered
	}
	total := len(allPools)

	pages := (total + limit - 1) / limit
	offset := (page - 1) * limit
	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	pools := make([]PoolInfo, 0, end-offset)
	for _, pool := range allPools[offset:end] {
		pools = append(pools, PoolInfo{
			Address: pool.Address.String(),
			Token0:  pool.Token0.String(),
			Token1:  pool.Token1.String(),
			Fee:     pool.Fee,
			Active:  pool.Active,
			Price:   pool.Curve.Price().String(),
		})
	}

	httputil.Success(c, PoolListResponse{
		Pools: pools,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	})
}

// PoolDetailResponse is a pool with its full curve snapshot
type PoolDetailResponse struct {
	persistence.StoredPool

	Ready bool   `json:"ready"`
	Price string `json:"price"`
}

// @Summary Get pool
// @Tags pools
// @Produce json
// @Param address path string true "Pool address"
// @Success 200 {object} PoolDetailResponse
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/pools/{address} [get]
func (h *PoolHandler) getPool(c *gin.Context) {
	addr, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		httputil.BadRequest(c, "invalid pool address")
		return
	}

	pool, ok := h.pools.Pool(addr)
	if !ok {
		httputil.NotFound(c, "pool not found")
		return
	}

	httputil.Success(c, PoolDetailResponse{
		StoredPool: *persistence.PoolToStored(pool),
		Ready:      pool.IsReady(),
		Price:      pool.Curve.Price().String(),
	})
}

// @Summary Register or replace a pool snapshot
// @Description An empty address is derived from the tokens and fee. Tokens must be sorted.
// @Tags admin
// @Accept json
// @Produce json
// @Param pool body persistence.StoredPool true "Pool snapshot"
// @Success 200 {object} PoolDetailResponse
// @Failure 400 {object} httputil.Response "Invalid snapshot"
// @Router /api/v1/admin/pools [post]
func (h *PoolHandler) upsertPool(c *gin.Context) {
	var stored persistence.StoredPool
	if err := c.ShouldBindJSON(&stored); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	pool, err := persistence.StoredToPool(&stored)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	saved, err := h.pools.Upsert(pool)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	httputil.Success(c, PoolDetailResponse{
		StoredPool: *persistence.PoolToStored(saved),
		Ready:      saved.IsReady(),
		Price:      saved.Curve.Price().String(),
	})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// @Summary Enable or disable a pool
// @Tags admin
// @Accept json
// @Produce json
// @Param address path string true "Pool address"
// @Param body body setActiveRequest true "Active flag"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/admin/pools/{address}/active [put]
func (h *PoolHandler) setActive(c *gin.Context) {
	addr, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		httputil.BadRequest(c, "invalid pool address")
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.pools.SetActive(addr, *req.Active); err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.Success(c, gin.H{"address": addr.String(), "active": *req.Active})
}

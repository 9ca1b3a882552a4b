package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/store"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetMarket retrieves a market's latest state
	// GET /api/v1/markets/:market_id
	GetMarket(c *gin.Context)

	// ListTopMarkets lists markets ordered by trailing 24h volume
	// GET /api/v1/markets?limit=<limit>
	ListTopMarkets(c *gin.Context)

	// GetMarketCandles lists a market's finalized candles for one resolution
	// GET /api/v1/markets/:market_id/candles?resolution=<resolution>&from=<micros>&to=<micros>&limit=<limit>
	GetMarketCandles(c *gin.Context)

	// GetProviderPositions lists a provider's liquidity positions
	// GET /api/v1/providers/:provider/positions
	GetProviderPositions(c *gin.Context)

	// GetPriceFeed returns every market's trailing 24h price change
	// GET /api/v1/price-feed
	GetPriceFeed(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	store store.Store
}

// NewHandler creates a new REST API handler
func NewHandler(st store.Store) Handler {
	return &handler{store: st}
}

func (h *handler) GetMarket(c *gin.Context) {
	marketID, err := strconv.ParseInt(c.Param("market_id"), 10, 64)
	if err != nil || marketID < 0 {
		respondBadRequest(c, "Invalid market ID")
		return
	}

	state, err := h.store.GetMarketLatestState(c.Request.Context(), marketID)
	if err != nil {
		respondInternalError(c, err)
		return
	}
	if state == nil {
		respondNotFound(c, "Market not found")
		return
	}

	c.JSON(http.StatusOK, toMarketDTO(*state))
}

func (h *handler) ListTopMarkets(c *gin.Context) {
	limit, err := parseLimit(c, 20)
	if err != nil {
		respondBadRequest(c, "Invalid limit")
		return
	}

	states, err := h.store.GetTopMarketsByDailyVolume(c.Request.Context(), limit)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListResponse(states, toMarketDTO))
}

func (h *handler) GetMarketCandles(c *gin.Context) {
	marketID, err := strconv.ParseInt(c.Param("market_id"), 10, 64)
	if err != nil || marketID < 0 {
		respondBadRequest(c, "Invalid market ID")
		return
	}

	resolution := domain.Resolution(c.Query("resolution"))
	if !resolution.Valid() {
		respondBadRequest(c, "Invalid resolution, expected one of 1m, 5m, 15m, 30m, 1h, 4h, 1d")
		return
	}

	from, err := parseOptionalInt64(c, "from")
	if err != nil {
		respondBadRequest(c, "Invalid from timestamp")
		return
	}
	to, err := parseOptionalInt64(c, "to")
	if err != nil {
		respondBadRequest(c, "Invalid to timestamp")
		return
	}
	limit, err := parseLimit(c, 0)
	if err != nil {
		respondBadRequest(c, "Invalid limit")
		return
	}

	buckets, err := h.store.GetBuckets(c.Request.Context(), marketID, resolution, from, to, limit)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListResponse(buckets, toCandleDTO))
}

func (h *handler) GetProviderPositions(c *gin.Context) {
	provider := c.Param("provider")
	if provider == "" {
		respondBadRequest(c, "Provider address is required")
		return
	}

	positions, err := h.store.GetProviderPositions(c.Request.Context(), provider)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListResponse(positions, toPositionDTO))
}

func (h *handler) GetPriceFeed(c *gin.Context) {
	feed, err := h.store.GetPriceFeed(c.Request.Context())
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListResponse(feed, func(e store.PriceFeedEntry) store.PriceFeedEntry {
		return e
	}))
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseLimit(c *gin.Context, fallback int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, strconv.ErrSyntax
	}
	return limit, nil
}

func parseOptionalInt64(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

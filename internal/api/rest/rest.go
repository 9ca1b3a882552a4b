package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes, all public read access
	v1 := router.Group("/api/v1")
	{
		v1.GET("/markets", handler.ListTopMarkets)
		v1.GET("/markets/:market_id", handler.GetMarket)
		v1.GET("/markets/:market_id/candles", handler.GetMarketCandles)

		v1.GET("/providers/:provider/positions", handler.GetProviderPositions)

		v1.GET("/price-feed", handler.GetPriceFeed)
	}
}

// Package server exposes the synchronizers' published state to the
// wallet UI over HTTP, and accepts the host signals (visibility,
// screen) that drive refresh gating. Provider outages never surface as
// 5xx here: consumers always get the most recent valid snapshot plus
// an error string.
package server

import (
	"github.com/gin-gonic/gin"
)

// Config wires the handler onto its collaborators.
type Config struct {
	Handler *MarketHandler
	Hub     *Hub
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	router.GET("/health", cfg.Handler.Health)

	api := router.Group("/v1")
	{
		api.GET("/price", cfg.Handler.GetPrice)
		api.GET("/rates", cfg.Handler.GetRates)
		api.POST("/rates/refresh", cfg.Handler.RefreshRates)
		api.GET("/history", cfg.Handler.GetHistory)
		api.GET("/history/:currency", cfg.Handler.GetHistoryForCurrency)
		api.POST("/visibility", cfg.Handler.PostVisibility)
		api.POST("/screen", cfg.Handler.PostScreen)
	}

	router.GET("/ws", cfg.Hub.Serve)

	return router
}
